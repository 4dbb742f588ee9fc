package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tonimelisma/drivegit/internal/state"
)

// Drive notification headers.
const (
	headerChannelID     = "X-Goog-Channel-ID"
	headerResourceState = "X-Goog-Resource-State"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleVerification answers domain-ownership probes. Drive requires the
// webhook host to serve the site-verification token over GET.
func (s *Server) handleVerification(c *gin.Context) {
	if s.cfg.VerificationToken != "" {
		c.String(http.StatusOK, "google-site-verification: %s", s.cfg.VerificationToken)
		return
	}

	c.String(http.StatusOK, "ok")
}

// handleNotification processes one push notification. The response is 200
// regardless of internal outcome; anything else makes Drive retry and pile
// duplicate notifications onto a cycle that is already running.
func (s *Server) handleNotification(c *gin.Context) {
	ctx := c.Request.Context()

	sub, err := s.store.Subscription(ctx)
	if err != nil {
		s.logger.Error("failed to load subscription", "error", err)
		c.Status(http.StatusOK)
		return
	}

	channelID := c.GetHeader(headerChannelID)

	if sub == nil || sub.ChannelID != channelID {
		s.logger.Warn("notification from unknown channel", "channel_id", channelID)
		c.Status(http.StatusOK)
		return
	}

	if c.GetHeader(headerResourceState) == "sync" {
		s.logger.Debug("channel sync ping acknowledged", "channel_id", channelID)
		c.Status(http.StatusOK)
		return
	}

	if err := s.syncer.HandleNotification(ctx); err != nil {
		s.logger.Error("sync cycle failed", "error", err)
	}

	c.Status(http.StatusOK)
}

// handleSetup anchors the cursor and registers the watch channel. With
// ?initial_sync=true the current folder contents are imported first, which
// anchors the cursor itself.
func (s *Server) handleSetup(c *gin.Context) {
	ctx := c.Request.Context()

	imported := 0

	if c.Query("initial_sync") == "true" {
		n, err := s.initial.RunInitialSync(ctx)
		if err != nil {
			s.logger.Error("initial sync failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		imported = n
	} else {
		token, err := s.watches.StartPageToken(ctx)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if err := s.store.SetCursor(ctx, token); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	sub, err := s.registerWatch(c)
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": sub.ChannelID,
		"expiration": sub.Expiration,
		"imported":   imported,
	})
}

// handleRenew replaces the watch channel before it expires, then runs a
// catch-up cycle so nothing notified during the handover is missed.
func (s *Server) handleRenew(c *gin.Context) {
	ctx := c.Request.Context()

	cursor, err := s.store.Cursor(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if cursor == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "no cursor stored, run setup first"})
		return
	}

	old, err := s.store.Subscription(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if old != nil {
		// Expired channels fail to stop; that is fine, they are dead anyway.
		if err := s.watches.StopWatch(ctx, old.ChannelID, old.ResourceID); err != nil {
			s.logger.Warn("failed to stop old watch channel",
				"channel_id", old.ChannelID, "error", err)
		}
	}

	sub, err := s.registerWatch(c)
	if err != nil {
		return
	}

	if err := s.syncer.HandleNotification(ctx); err != nil {
		s.logger.Error("catch-up cycle failed", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"channel_id": sub.ChannelID,
		"expiration": sub.Expiration,
	})
}

// registerWatch creates a watch channel anchored at the stored cursor and
// persists the registration. On failure the response is already written.
func (s *Server) registerWatch(c *gin.Context) (*state.Subscription, error) {
	ctx := c.Request.Context()

	cursor, err := s.store.Cursor(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, err
	}

	ch, err := s.watches.Watch(ctx, s.cfg.WebhookURL, cursor)
	if err != nil {
		s.logger.Error("failed to register watch channel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, err
	}

	sub := &state.Subscription{
		ChannelID:  ch.ID,
		ResourceID: ch.ResourceID,
		Expiration: ch.Expiration,
	}

	if err := s.store.SetSubscription(ctx, sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, err
	}

	s.logger.Info("watch channel registered",
		"channel_id", sub.ChannelID, "expiration", sub.Expiration)

	return sub, nil
}
