package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/run-coach/internal/service"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Races      service.RaceService
	Plans      service.PlanService
	Activities service.ActivityService
	Scores     service.ScoreService
}

func SetupRoutes(router *gin.Engine, jwtSecret string, services Services, logger *slog.Logger) {
	planHandler := NewPlanHandler(services.Plans, services.Scores, logger)
	activityHandler := NewActivityHandler(services.Activities, services.Scores, logger)
	raceHandler := NewRaceHandler(services.Races, logger)

	router.Use(RequestLogger(logger))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(jwtSecret))
	{
		protected.GET("/me", func(c *gin.Context) {
			athleteID, err := getAthleteIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get athlete ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"athleteId": athleteID.Hex()})
		})

		raceGroup := protected.Group("/races")
		{
			raceGroup.POST("", raceHandler.RegisterRace)
			raceGroup.GET("/:raceId", raceHandler.GetRace)
		}

		planGroup := protected.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.GET("", planHandler.ListPlans)
			planGroup.GET("/:planId", planHandler.GetPlan)
			planGroup.PUT("/:planId/race", planHandler.AttachRace)
			planGroup.PUT("/:planId/baseline", planHandler.AttachBaseline)
			planGroup.POST("/:planId/preview", planHandler.PreviewPlan)
			planGroup.POST("/:planId/confirm", planHandler.ConfirmPlan)
			planGroup.PATCH("/:planId/status", planHandler.UpdatePlanStatus)

			// Weeks after the first are generated one at a time, in order.
			planGroup.POST("/:planId/weeks/:weekNumber", planHandler.GenerateWeek)
			planGroup.GET("/:planId/weeks/:weekNumber", planHandler.GetWeek)
			planGroup.GET("/:planId/weeks/:weekNumber/executions", planHandler.GetWeekExecutions)
		}

		activityGroup := protected.Group("/activities")
		{
			activityGroup.POST("/uploads", activityHandler.RequestUploadURL)
			activityGroup.POST("/import", activityHandler.ImportFIT)
			activityGroup.POST("", activityHandler.RecordActivity)
			activityGroup.GET("", activityHandler.ListActivities)
			activityGroup.GET("/:activityId", activityHandler.GetActivity)
		}

		protected.POST("/days/:dayId/executions", activityHandler.RecordExecution)
	}
}
