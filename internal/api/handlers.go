package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"follower-audit/internal/flags"
	"follower-audit/internal/store"
)

// Handlers answer with counts and summary text; failure detail goes to
// the log, not the caller.

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "follower-audit",
	})
}

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.store.Load(c.Request.Context())
	if err != nil {
		if errors.Is(err, store.ErrStorageUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "no_dataset", "message": "no dataset yet, run a bootstrap crawl first"},
			})
			return
		}
		s.log.Error("load_accounts_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "load_failed", "message": "could not load dataset"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(accounts), "accounts": accounts})
}

func (s *Server) getGraph(c *gin.Context) {
	accounts, err := s.store.Load(c.Request.Context(), "username", "followings", "protected")
	if err != nil {
		if errors.Is(err, store.ErrStorageUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "no_dataset", "message": "no dataset yet, run a bootstrap crawl first"},
			})
			return
		}
		s.log.Error("load_accounts_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "load_failed", "message": "could not load dataset"},
		})
		return
	}

	c.JSON(http.StatusOK, s.builder.Build(accounts))
}

type bootstrapRequest struct {
	Username string `json:"username"`
	Pages    int    `json:"pages"`
}

func (s *Server) bootstrap(c *gin.Context) {
	var req bootstrapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_request", "message": "username is required"},
		})
		return
	}
	if req.Pages <= 0 {
		req.Pages = 1
	}

	count, err := s.crawler.Bootstrap(c.Request.Context(), req.Username, req.Pages)
	if err != nil {
		s.log.Error("bootstrap_failed", "username", req.Username, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{"code": "bootstrap_failed", "message": "could not fetch followers"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Done", "accounts": count})
}

type expandRequest struct {
	Pages        int `json:"pages"`
	DelaySeconds int `json:"delay_seconds"`
}

func (s *Server) expand(c *gin.Context) {
	var req expandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{"code": "invalid_request", "message": "invalid request body"},
		})
		return
	}
	if req.Pages <= 0 {
		req.Pages = 10
	}
	if req.DelaySeconds <= 0 {
		// external rate limits allow roughly 50 calls per 15 minutes,
		// so the default sits comfortably under that
		req.DelaySeconds = 45
	}

	result, err := s.crawler.Expand(c.Request.Context(), req.Pages, time.Duration(req.DelaySeconds)*time.Second)
	if err != nil {
		if errors.Is(err, store.ErrStorageUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "no_dataset", "message": "no dataset yet, run a bootstrap crawl first"},
			})
			return
		}
		s.log.Error("expand_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "expand_failed", "message": "expansion crawl failed"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Done", "result": result})
}

func (s *Server) runFlags(c *gin.Context) {
	ctx := c.Request.Context()

	accounts, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, store.ErrStorageUnavailable) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "no_dataset", "message": "no dataset yet, run a bootstrap crawl first"},
			})
			return
		}
		s.log.Error("load_accounts_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "load_failed", "message": "could not load dataset"},
		})
		return
	}

	ref, err := s.store.ReferenceTime(ctx)
	if err != nil {
		// without a marker the rules fall back to now, matching how the
		// dataset behaves before its first refresh stamp
		s.log.Warn("reference_time_unavailable", "error", err)
		ref = time.Now()
	}

	results := s.engine.Evaluate(accounts, ref)
	if err := flags.Apply(ctx, s.store, accounts, results); err != nil {
		s.log.Error("apply_flags_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "flags_failed", "message": "could not persist flags"},
		})
		return
	}
	s.collector.Flagged(len(results))

	msg := fmt.Sprintf("Flagged %d users", len(results))
	s.log.Info("flag_pass_completed", "flagged", len(results), "accounts", len(accounts))
	c.JSON(http.StatusOK, gin.H{"msg": msg})
}

func (s *Server) blockAccount(c *gin.Context) {
	username := c.Param("username")

	if err := s.client.Block(c.Request.Context(), username); err != nil {
		s.log.Error("block_failed", "username", username, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{"code": "action_failed", "message": "block failed"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Done"})
}

// forceUnfollow blocks and immediately unblocks, which drops the
// follower relationship without leaving a standing block.
func (s *Server) forceUnfollow(c *gin.Context) {
	username := c.Param("username")
	ctx := c.Request.Context()

	if err := s.client.Block(ctx, username); err != nil {
		s.log.Error("force_unfollow_failed", "username", username, "stage", "block", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{"code": "action_failed", "message": "force unfollow failed"},
		})
		return
	}
	time.Sleep(200 * time.Millisecond)
	if err := s.client.Unblock(ctx, username); err != nil {
		s.log.Error("force_unfollow_failed", "username", username, "stage", "unblock", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error": gin.H{"code": "action_failed", "message": "force unfollow failed"},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Done"})
}
