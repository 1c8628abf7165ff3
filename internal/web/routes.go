package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	studentsHandler := handlers.NewStudentsHandler(
		s.deps.Store, s.deps.Enroller, s.deps.Identities, s.deps.Config.Identity.CaptureDir)
	coursesHandler := handlers.NewCoursesHandler(s.deps.Store, s.deps.Resolver)
	enrollmentsHandler := handlers.NewEnrollmentsHandler(s.deps.Store)
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Store, s.newController)
	identifyHandler := handlers.NewIdentifyHandler(
		s.deps.Index, s.deps.Identities, s.deps.Detector, s.deps.Embedder)
	streamHandler := handlers.NewStreamHandler(&s.deps.Config.Camera, s.deps.Registry, s.newController)

	// Health check.
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Students and face enrollment.
		r.Get("/students", studentsHandler.List)
		r.Post("/students", studentsHandler.Create)
		r.Get("/students/{id}", studentsHandler.Get)
		r.Delete("/students/{id}", studentsHandler.Delete)
		r.Post("/students/{id}/face", studentsHandler.EnrollFace)

		// Courses and their schedules.
		r.Get("/courses", coursesHandler.List)
		r.Post("/courses", coursesHandler.Create)
		r.Get("/courses/active", coursesHandler.Active)
		r.Get("/courses/overlaps", coursesHandler.Overlaps)
		r.Get("/courses/{id}", coursesHandler.Get)
		r.Put("/courses/{id}", coursesHandler.Update)
		r.Delete("/courses/{id}", coursesHandler.Delete)

		// Enrollments.
		r.Get("/courses/{id}/enrollments", enrollmentsHandler.List)
		r.Post("/courses/{id}/enrollments", enrollmentsHandler.Create)
		r.Delete("/courses/{id}/enrollments/{studentId}", enrollmentsHandler.Delete)

		// Attendance.
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/export", attendanceHandler.ExportCSV)
		r.Post("/attendance/mark", attendanceHandler.MarkPhoto)

		// Identification (top-k, HNSW backed).
		r.Post("/identify", identifyHandler.Identify)
		r.Post("/identify/reindex", identifyHandler.Reindex)

		// Live video.
		r.Get("/cameras", streamHandler.Cameras)
		r.Get("/video/feed", streamHandler.Feed)
		r.Get("/video/snapshot", streamHandler.Snapshot)
	})
}
