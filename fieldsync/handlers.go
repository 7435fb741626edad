package fieldsync

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/wells_backend/config"
	"github.com/mmdatafocus/wells_backend/models"
	"github.com/mmdatafocus/wells_backend/utils"
	"gorm.io/gorm"
)

// LoginHandler exchanges the configured operator credentials for a
// session JWT scoped to this service's own API.
func LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		wantUser := os.Getenv("OPERATOR_USERNAME")
		wantPass := os.Getenv("OPERATOR_PASSWORD")
		if wantUser == "" || wantPass == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator login not configured"})
			return
		}

		userOk := subtle.ConstantTimeCompare([]byte(req.Username), []byte(wantUser)) == 1
		passOk := subtle.ConstantTimeCompare([]byte(req.Password), []byte(wantPass)) == 1
		if !userOk || !passOk {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token, err := utils.JwtGenerate(req.Username, "operator")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// TriggerSyncHandler runs one sync synchronously and returns its summary.
func TriggerSyncHandler(svc *SyncService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerSyncRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		summary, err := svc.Run(c.Request.Context(), req.Source, models.SyncTriggeredManual)
		if err != nil {
			if summary == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "summary": summary})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		var last models.SyncRun
		resp := StatusResponse{}
		err := db.Order("id DESC").First(&last).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err == nil {
			r := runResponse(&last)
			resp.LastRun = &r
		}

		var lastSuccess models.SyncRun
		err = db.Where("status = ?", models.SyncRunStatusSuccess).Order("id DESC").First(&lastSuccess).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err == nil {
			r := runResponse(&lastSuccess)
			resp.LastSuccessRun = &r
		}

		c.JSON(http.StatusOK, resp)
	}
}

func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB().WithContext(c.Request.Context())

		limit := 20
		if v, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil && v > 0 && v <= 100 {
			limit = v
		}

		var runs []models.SyncRun
		if err := db.Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		resp := SyncHistoryResponse{Items: make([]SyncRunResponse, 0, len(runs))}
		for i := range runs {
			resp.Items = append(resp.Items, runResponse(&runs[i]))
		}
		c.JSON(http.StatusOK, resp)
	}
}

func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())

		var run models.SyncRun
		if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		var runErrs []models.SyncRunError
		if err := db.Where("sync_run_id = ?", run.ID).Order("id").Find(&runErrs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		detail := SyncRunDetailResponse{SyncRunResponse: runResponse(&run)}
		for _, e := range runErrs {
			detail.Errors = append(detail.Errors, SyncErrorResponse{
				ID:         e.ID,
				EntityType: e.EntityType,
				ExternalId: e.ExternalId,
				ErrorCode:  e.ErrorCode,
				Message:    e.Message,
			})
		}
		c.JSON(http.StatusOK, detail)
	}
}

func runResponse(run *models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:                run.ID,
		Status:            run.Status,
		Source:            run.Source,
		TriggeredBy:       run.TriggeredBy,
		PlatformsInserted: run.PlatformsInserted,
		PlatformsUpdated:  run.PlatformsUpdated,
		WellsInserted:     run.WellsInserted,
		WellsUpdated:      run.WellsUpdated,
		ErrorCount:        run.ErrorCount,
		FailureReason:     run.FailureReason,
		StartedAt:         formatTime(run.StartedAt),
		FinishedAt:        formatTime(run.FinishedAt),
		DurationMs:        run.DurationMs,
	}
}
