package handlers

import (
	"net/http"

	"github.com/chachabrian/ridepool-backend/internal/services"
	"github.com/gin-gonic/gin"
)

func GetProposals(gov *services.GovernanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		proposals, err := gov.List(c.Request.Context(), c.Query("status"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, proposals)
	}
}

func GetProposal(gov *services.GovernanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		p, err := gov.Get(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func CreateProposal(gov *services.GovernanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.ProposalInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		p, err := gov.Create(c.Request.Context(), c.GetUint("userId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func VoteOnProposal(gov *services.GovernanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var input struct {
			Support *bool `json:"support" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		p, err := gov.Vote(c.Request.Context(), c.GetUint("userId"), id, *input.Support)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func CloseProposal(gov *services.GovernanceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		p, err := gov.Close(c.Request.Context(), c.GetUint("userId"), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}
