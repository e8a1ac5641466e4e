// Command seed fills an empty database with demo departments, accounts,
// courses and hour entries. Every account uses the password "password123".
package main

import (
	"flag"
	"log"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/infra"
	"gestionlearn.com/internal/model"
)

const demoPassword = "password123"

func main() {
	reset := flag.Bool("reset", false, "delete all existing records first")
	flag.Parse()

	cfg := config.LoadConfig()
	pg, err := infra.NewPostgresClient(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := pg.DB

	if *reset {
		if err := clearTables(db, cfg.Database.TablePrefix); err != nil {
			log.Fatalf("Seed: failed to clear tables: %v", err)
		}
	} else {
		var count int64
		if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
			log.Fatalf("Seed: %v", err)
		}
		if count > 0 {
			log.Printf("Seed: database already has %d users, run with -reset to start over", count)
			return
		}
	}

	if err := db.Transaction(seed); err != nil {
		log.Fatalf("Seed failed: %v", err)
	}
	log.Printf("Seed: done. Log in as admin@uni.com / %s", demoPassword)
}

func clearTables(db *gorm.DB, prefix string) error {
	log.Println("Seed: clearing tables...")
	all := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	if err := all.Delete(&model.HourEntry{}).Error; err != nil {
		return err
	}
	if err := db.Exec("DELETE FROM " + prefix + "course_students").Error; err != nil {
		return err
	}
	if err := all.Delete(&model.Course{}).Error; err != nil {
		return err
	}
	if err := all.Delete(&model.User{}).Error; err != nil {
		return err
	}
	return all.Delete(&model.Department{}).Error
}

func seed(tx *gorm.DB) error {
	departments := []model.Department{
		{Name: "Informatique", Description: "Département des Sciences Informatiques"},
		{Name: "Mathématiques", Description: "Département de Mathématiques Appliquées"},
		{Name: "Physique", Description: "Département de Physique Théorique et Appliquée"},
		{Name: "Chimie", Description: "Département de Chimie"},
		{Name: "Biologie", Description: "Département des Sciences Biologiques"},
		{Name: "Géologie", Description: "Département des Sciences de la Terre"},
	}
	if err := tx.Create(&departments).Error; err != nil {
		return err
	}
	log.Printf("Seed: %d departments", len(departments))

	hash, err := bcrypt.GenerateFromPassword([]byte(demoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	info := &departments[0].ID
	account := func(name, email string, role model.Role, dept *uint) model.User {
		return model.User{Name: name, Email: email, Password: string(hash), Role: role, DepartmentID: dept, IsActive: true}
	}
	users := []model.User{
		account("Admin Système", "admin@uni.com", model.RoleAdmin, nil),
		account("RH Manager", "rh@uni.com", model.RoleHR, nil),
		account("Principal Informatique", "principal.info@uni.com", model.RoleLeadTrainer, info),
		account("Prof Java", "prof.java@uni.com", model.RoleTrainer, info),
		account("Prof Python", "prof.python@uni.com", model.RoleTrainer, info),
		account("Étudiant 1", "etudiant1@uni.com", model.RoleStudent, info),
		account("Étudiant 2", "etudiant2@uni.com", model.RoleStudent, info),
	}
	if err := tx.Create(&users).Error; err != nil {
		return err
	}
	if err := tx.Model(&departments[0]).Update("main_teacher_id", users[2].ID).Error; err != nil {
		return err
	}
	log.Printf("Seed: %d users", len(users))

	java, python, student1, student2 := users[3], users[4], users[5], users[6]
	courses := []model.Course{
		{
			Title:        "Introduction à Java",
			Code:         "JAVA101",
			Description:  "Fondamentaux de la programmation Java",
			DepartmentID: departments[0].ID,
			TeacherID:    &java.ID,
			Students:     []model.User{student1, student2},
		},
		{
			Title:        "Python Avancé",
			Code:         "PY201",
			Description:  "Concepts avancés en Python",
			DepartmentID: departments[0].ID,
			TeacherID:    &python.ID,
			Students:     []model.User{student1},
		},
	}
	if err := tx.Omit("Students.*").Create(&courses).Error; err != nil {
		return err
	}
	log.Printf("Seed: %d courses", len(courses))

	today := time.Now().UTC().Truncate(24 * time.Hour)
	hours := []model.HourEntry{
		{CourseID: courses[0].ID, TeacherID: java.ID, Date: today, Hours: 3, Description: "Introduction aux classes et objets"},
		{CourseID: courses[1].ID, TeacherID: python.ID, Date: today.AddDate(0, 0, -1), Hours: 3, Description: "Exercices sur les générateurs"},
	}
	if err := tx.Create(&hours).Error; err != nil {
		return err
	}
	log.Printf("Seed: %d hour entries", len(hours))
	return nil
}
