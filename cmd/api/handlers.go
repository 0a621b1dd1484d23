package main

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/biometric"
	"campusattend/internal/catalog"
	"campusattend/internal/config"
	"campusattend/internal/store"
	"campusattend/internal/users"
)

type deps struct {
	cfg     config.App
	db      *store.DB
	redis   *store.Redis
	bio     *biometric.Service
	attRepo *attendance.Repository
	users   *users.Repository
	catalog *catalog.Repository
}

func registerRoutes(r *gin.Engine, d *deps) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := d.redis.Healthy(c.Request.Context())
		dbHealthy := d.db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.POST("/v1/auth/login", d.login)

	authGroup := r.Group("/v1", auth.UserAuth(d.cfg.JWTSigningKey, d.cfg.JWTIssuer))

	authGroup.GET("/me", func(c *gin.Context) {
		ident, _ := auth.IdentityFrom(c)
		c.JSON(http.StatusOK, gin.H{
			"id":    ident.ID,
			"role":  ident.Role,
			"name":  ident.Name,
			"email": ident.Email,
		})
	})

	authGroup.GET("/biometric/registration", d.registrationStatus)
	authGroup.POST("/biometric/register", d.register)
	authGroup.POST("/biometric/verify", d.verify)
	authGroup.POST("/biometric/attendance", d.markAttendance)

	authGroup.GET("/attendance", d.listAttendance)
	authGroup.GET("/subjects", d.listSubjects)
	authGroup.GET("/departments", d.listDepartments)
}

func (d *deps) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	user, err := d.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	role, err := auth.ParseRole(user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	ident := auth.Identity{ID: user.ID, Role: role, Name: user.Name, Email: user.Email}
	tokens, err := auth.Issue(ident, d.cfg.JWTIssuer, d.cfg.JWTSigningKey, d.cfg.AccessTTL, d.cfg.RefreshTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
		"expires_at":    tokens.AccessExp.Unix(),
		"role":          role,
		"name":          user.Name,
	})
}

func (d *deps) registrationStatus(c *gin.Context) {
	ident, _ := auth.IdentityFrom(c)

	registered, err := d.bio.RegistrationStatus(c.Request.Context(), ident)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}

	resp := gin.H{"registered": registered}
	if state, err := d.attRepo.GetRegistration(c.Request.Context(), ident.ID); err == nil && state != nil {
		resp["status"] = state.Status
		resp["last_registered_at"] = state.LastRegisteredAt
	}
	c.JSON(http.StatusOK, resp)
}

func (d *deps) register(c *gin.Context) {
	ident, _ := auth.IdentityFrom(c)

	res, err := d.bio.Register(c.Request.Context(), ident)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (d *deps) verify(c *gin.Context) {
	ident, _ := auth.IdentityFrom(c)

	verified, err := d.bio.Verify(c.Request.Context(), ident)
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verified": verified})
}

func (d *deps) markAttendance(c *gin.Context) {
	ident, _ := auth.IdentityFrom(c)

	var req struct {
		SubjectCode  string `json:"subject_code"`
		Semester     string `json:"semester"`
		AcademicYear string `json:"academic_year"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := d.bio.MarkAttendance(c.Request.Context(), ident, biometric.MarkRequest{
		SubjectCode:  req.SubjectCode,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
	})
	if err != nil {
		writeWorkflowError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"record": rec})
}

func (d *deps) listAttendance(c *gin.Context) {
	ident, _ := auth.IdentityFrom(c)

	filter := attendance.ListFilter{
		StudentID:   ident.ID,
		SubjectCode: c.Query("subject_code"),
	}
	if v := c.Query("semester"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Semester = parsed
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Offset = parsed
		}
	}

	records, err := d.attRepo.ListRecords(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing attendance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (d *deps) listSubjects(c *gin.Context) {
	subjects, err := d.catalog.ListSubjects(c.Request.Context(), c.Query("department_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing subjects failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

func (d *deps) listDepartments(c *gin.Context) {
	departments, err := d.catalog.ListDepartments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing departments failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

// writeWorkflowError maps the workflow error taxonomy onto HTTP statuses.
// Unexpected faults get a generic message; internal detail stays in the logs.
func writeWorkflowError(c *gin.Context, err error) {
	var (
		authErr *biometric.AuthorizationError
		valErr  *biometric.ValidationError
		preErr  *biometric.PreconditionError
		verErr  *biometric.VerificationError
		conErr  *biometric.ConflictError
	)
	switch {
	case errors.As(err, &authErr):
		c.JSON(http.StatusForbidden, gin.H{"error": authErr.Error()})
	case errors.As(err, &valErr):
		fields := make(map[string]string, len(valErr.Fields))
		for _, f := range valErr.Fields {
			fields[f.Field] = f.Error
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Error(), "fields": fields})
	case errors.As(err, &preErr):
		c.JSON(http.StatusPreconditionFailed, gin.H{"error": preErr.Error()})
	case errors.As(err, &verErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verErr.Error()})
	case errors.As(err, &conErr):
		c.JSON(http.StatusConflict, gin.H{"error": conErr.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "a system error occurred, please try again later"})
	}
}
