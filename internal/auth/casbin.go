package auth

import (
	"log"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"gestionlearn.com/internal/model"
)

// Permission groups. Roles are assigned to groups with g rules and every p
// rule names a group, so a route opened to a new role is one grouping line.
const (
	GroupMember            = "member"
	GroupHourWriter        = "hour_writer"
	GroupUserManager       = "user_manager"
	GroupDirectoryReader   = "directory_reader"
	GroupCourseManager     = "course_manager"
	GroupDepartmentManager = "department_manager"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, p.act)
`

// DefaultPolicies are the route rules seeded into an empty casbin_rule table.
// Ownership and department checks happen later, in the services.
var DefaultPolicies = [][]string{
	{GroupMember, "/api/auth/me", "^GET$"},
	{GroupMember, "/api/courses", "^GET$"},
	{GroupMember, "/api/courses/:id", "^GET$"},
	{GroupMember, "/api/hours", "^GET$"},
	{GroupMember, "/api/hours/me", "^GET$"},
	{GroupMember, "/api/hours/:id", "^GET$"},
	{GroupMember, "/api/users/:id/password", "^PATCH$"},

	{GroupHourWriter, "/api/hours", "^POST$"},
	{GroupHourWriter, "/api/hours/:id", "^(PATCH|DELETE)$"},

	{GroupDirectoryReader, "/api/users/students", "^GET$"},
	{GroupDirectoryReader, "/api/users/teachers", "^GET$"},

	{GroupUserManager, "/api/users", "^(GET|POST)$"},
	{GroupUserManager, "/api/users/:id", "^(GET|PATCH)$"},
	{GroupUserManager, "/api/users/:id/role", "^PATCH$"},
	{GroupUserManager, "/api/users/:id/activate", "^PATCH$"},

	{GroupCourseManager, "/api/courses", "^POST$"},
	{GroupCourseManager, "/api/courses/:id", "^(PATCH|DELETE)$"},
	{GroupCourseManager, "/api/courses/:id/students", "^PATCH$"},

	{GroupDepartmentManager, "/api/departments", "^POST$"},
	{GroupDepartmentManager, "/api/departments/:id", "^(PATCH|DELETE)$"},
}

// DefaultGroupings assigns roles to permission groups.
var DefaultGroupings = [][]string{
	{string(model.RoleAdmin), GroupMember},
	{string(model.RoleHR), GroupMember},
	{string(model.RoleLeadTrainer), GroupMember},
	{string(model.RoleTrainer), GroupMember},
	{string(model.RoleStudent), GroupMember},

	{string(model.RoleAdmin), GroupHourWriter},
	{string(model.RoleHR), GroupHourWriter},
	{string(model.RoleLeadTrainer), GroupHourWriter},
	{string(model.RoleTrainer), GroupHourWriter},

	{string(model.RoleAdmin), GroupDirectoryReader},
	{string(model.RoleHR), GroupDirectoryReader},
	{string(model.RoleLeadTrainer), GroupDirectoryReader},

	{string(model.RoleAdmin), GroupUserManager},
	{string(model.RoleHR), GroupUserManager},

	{string(model.RoleAdmin), GroupCourseManager},
	{string(model.RoleLeadTrainer), GroupCourseManager},

	{string(model.RoleAdmin), GroupDepartmentManager},
}

// InitCasbin builds the route enforcer on top of the casbin_rule table and
// seeds the default rules when the table is empty.
func InitCasbin(db *gorm.DB) (*casbin.Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}

	m, err := casbinmodel.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}

	policies, err := enforcer.GetPolicy()
	if err != nil {
		return nil, err
	}
	if len(policies) == 0 {
		log.Println("Casbin: No policies found, seeding defaults...")
		if _, err := enforcer.AddPolicies(DefaultPolicies); err != nil {
			return nil, err
		}
		if _, err := enforcer.AddGroupingPolicies(DefaultGroupings); err != nil {
			return nil, err
		}
		log.Printf("Casbin: Seeded %d rules and %d groupings", len(DefaultPolicies), len(DefaultGroupings))
	}

	log.Println("Casbin initialized successfully")
	return enforcer, nil
}
