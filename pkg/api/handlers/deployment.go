package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/autoclaw/autoclaw-backend/pkg/api/dtos"
	"github.com/autoclaw/autoclaw-backend/pkg/domain/entities"
	"github.com/autoclaw/autoclaw-backend/pkg/services"
)

type DeploymentHandler struct {
	DeploymentService *services.DeploymentService
}

func NewDeploymentHandler(deploymentService *services.DeploymentService) *DeploymentHandler {
	return &DeploymentHandler{DeploymentService: deploymentService}
}

func (h *DeploymentHandler) Provision(c *gin.Context) {
	var request dtos.ProvisionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deployment, err := h.DeploymentService.CreateDeployment(request)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dtos.ProvisionResponse{
		DeploymentID: deployment.ID.String(),
		Status:       string(deployment.Status),
		Message:      "Provisioning started. Use the status endpoint to check progress.",
	})
}

func (h *DeploymentHandler) GetStatus(c *gin.Context) {
	id, ok := deploymentID(c)
	if !ok {
		return
	}

	deployment, err := h.DeploymentService.GetDeployment(id)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, deployment)
}

func (h *DeploymentHandler) List(c *gin.Context) {
	wallet := c.Query("wallet")

	deployments, err := h.DeploymentService.ListDeployments(wallet)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dtos.ListDeploymentsResponse{
		Total:       len(deployments),
		Deployments: deployments,
	})
}

func (h *DeploymentHandler) Delete(c *gin.Context) {
	id, ok := deploymentID(c)
	if !ok {
		return
	}

	if err := h.DeploymentService.DeleteDeployment(c.Request.Context(), id); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deployment " + id + " deleted"})
}

func (h *DeploymentHandler) Renew(c *gin.Context) {
	id, ok := deploymentID(c)
	if !ok {
		return
	}

	var request dtos.RenewRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expiresAt, err := h.DeploymentService.RenewDeployment(id, request.WalletAddress, request.PaymentSignature)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dtos.RenewResponse{
		Message:      "Deployment renewed successfully",
		DeploymentID: id,
		ExpiresAt:    expiresAt,
	})
}

func deploymentID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is not a valid deployment id"})
		return "", false
	}
	return id, true
}

func abortWithServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entities.ErrDeploymentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Deployment not found"})
	case errors.Is(err, entities.ErrOwnerMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
