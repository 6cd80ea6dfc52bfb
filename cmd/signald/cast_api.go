package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pedalcast/pedalcast/pkg/cast"
	"github.com/pedalcast/pedalcast/pkg/log"
	"github.com/pedalcast/pedalcast/pkg/signal"
)

const storeTimeout = 5 * time.Second

func getSnapshot(store cast.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := signal.NormalizePairCode(c.Param("code"))
		if !signal.ValidatePairCode(code) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		snap, ok, err := store.Get(ctx, code)
		if err != nil {
			log.Errorf("cast %s: get: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot"})
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}

func putSnapshot(store cast.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := signal.NormalizePairCode(c.Param("code"))
		if !signal.ValidatePairCode(code) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
			return
		}

		var snap cast.Snapshot
		if err := c.ShouldBindJSON(&snap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		if err := store.Put(ctx, code, snap); err != nil {
			log.Errorf("cast %s: put: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func clearSnapshot(store cast.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := signal.NormalizePairCode(c.Param("code"))
		if !signal.ValidatePairCode(code) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), storeTimeout)
		defer cancel()

		if err := store.Clear(ctx, code); err != nil {
			log.Errorf("cast %s: clear: %v", code, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
