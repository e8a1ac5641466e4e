package constants

// 事件类型常量
const (
	// 课时事件
	EventHourCreated = "hour.created"
	EventHourUpdated = "hour.updated"
	EventHourDeleted = "hour.deleted"

	// 课程事件
	EventCourseCreated         = "course.created"
	EventCourseDeleted         = "course.deleted"
	EventCourseStudentsChanged = "course.students.changed"

	// 用户事件
	EventUserActivated   = "user.activated"
	EventUserDeactivated = "user.deactivated"
	EventPasswordReset   = "user.password.reset"
)

// AllEvents lists every event type, for subscribers that forward everything.
var AllEvents = []string{
	EventHourCreated,
	EventHourUpdated,
	EventHourDeleted,
	EventCourseCreated,
	EventCourseDeleted,
	EventCourseStudentsChanged,
	EventUserActivated,
	EventUserDeactivated,
	EventPasswordReset,
}
