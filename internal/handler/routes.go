package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-enrollment/internal/middleware"
	"github.com/noah-isme/sis-enrollment/internal/models"
)

// SISRoutes groups the handlers mounted by the SIS API.
type SISRoutes struct {
	Auth        middleware.TokenValidator
	Enrollments *EnrollmentHandler
	Grades      *GradeHandler
	Semesters   *SemesterHandler
	Courses     *CourseHandler
	Logger      *zap.Logger
}

// Register mounts every SIS route under rg. All routes require a valid token.
func (r SISRoutes) Register(rg *gin.RouterGroup) {
	api := rg.Group("")
	api.Use(middleware.JWT(r.Auth))

	student := middleware.RequireRoles(models.RoleStudent)
	teacher := middleware.RequireRoles(models.RoleTeacher)
	admin := middleware.RequireRoles(models.RoleAdmin)

	api.POST("/enroll/:parallelId", student, middleware.Audit(r.Logger, "enroll"), r.Enrollments.Enroll)
	api.DELETE("/enroll/:parallelId", student, middleware.Audit(r.Logger, "drop"), r.Enrollments.Drop)
	api.GET("/students/me/parallels", student, r.Enrollments.MyParallels)
	api.GET("/students/me/enrollments", student, r.Enrollments.MyEnrollments)

	api.GET("/parallels/next-semester", r.Enrollments.NextSemester)
	api.GET("/parallels/current-semester", r.Enrollments.CurrentSemester)

	api.POST("/grade/:studentUsername", teacher, middleware.Audit(r.Logger, "grade"), r.Grades.Assign)
	api.GET("/courses", teacher, r.Courses.ListCourses)
	api.POST("/courses", teacher, middleware.Audit(r.Logger, "create_course"), r.Courses.CreateCourse)
	api.POST("/parallels", teacher, middleware.Audit(r.Logger, "create_parallel"), r.Courses.CreateParallel)
	api.PUT("/parallels/:id", teacher, middleware.Audit(r.Logger, "update_parallel"), r.Courses.UpdateParallel)
	api.GET("/parallels/:id/students", teacher, r.Courses.Students)

	api.GET("/semesters", r.Semesters.List)
	api.GET("/semesters/active", r.Semesters.GetActive)
	api.GET("/semesters/next", r.Semesters.GetNext)
	api.POST("/semesters", admin, middleware.Audit(r.Logger, "create_semester"), r.Semesters.Create)
	api.PUT("/semesters/:id/activate", admin, middleware.Audit(r.Logger, "activate_semester"), r.Semesters.Activate)
}

// RegisterEnrollmentRecordRoutes mounts the enrollment-record API. It is called service to
// service and carries no authentication.
func RegisterEnrollmentRecordRoutes(r gin.IRoutes, h *EnrollmentRecordHandler) {
	r.GET("/enrollment/:username", h.List)
	r.POST("/enrollment/:username", h.Create)
	r.POST("/enrollment/grade/:username", h.Grade)
	r.DELETE("/enrollment/:username/:parallelId", h.Delete)
}

// RegisterOps mounts health, readiness and metrics endpoints.
func RegisterOps(r gin.IRoutes, h *MetricsHandler) {
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
}
