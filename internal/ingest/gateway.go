package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"recital/internal/logging"
	"recital/internal/notifications"
	"recital/internal/recitals"
	"recital/internal/services"
)

// Scheduler wakes the finalizer when a session becomes eligible for
// processing.
type Scheduler interface {
	Schedule(sessionID string)
}

// Gateway validates incoming session traffic, persists segments, and kicks
// off finalization when a session ends. All operations are scoped to the
// authenticated speaker; sessions owned by other users are reported as
// missing.
type Gateway struct {
	store      *recitals.Store
	contentDir string
	scheduler  Scheduler
	notifier   notifications.Service
	logger     *slog.Logger
}

// NewGateway constructs an ingestion gateway.
func NewGateway(store *recitals.Store, contentDir string, scheduler Scheduler, notifier notifications.Service, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Gateway{
		store:      store,
		contentDir: contentDir,
		scheduler:  scheduler,
		notifier:   notifier,
		logger:     logging.WithComponent(logger, "ingest"),
	}
}

// CreateSession opens a new active session for the speaker, optionally bound
// to one of their documents.
func (g *Gateway) CreateSession(ctx context.Context, userID, documentID string) (*recitals.Session, error) {
	if documentID != "" {
		doc, err := g.store.DocumentByID(ctx, documentID)
		if err != nil {
			return nil, services.Wrap(services.ErrStorage, "ingest", "create session", "", err)
		}
		if doc == nil {
			return nil, services.Wrap(services.ErrValidation, "ingest", "create session", "unknown document id", nil)
		}
	}

	session, err := g.store.CreateSession(ctx, userID, documentID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "ingest", "create session", "", err)
	}
	g.logger.Info("session created",
		logging.String(logging.FieldSession, session.ID),
		logging.String("user_id", userID))
	return session, nil
}

// EndSession moves an active session to ended and schedules finalization.
// Ending an already ended or finalized session is a no-op so client retries
// stay safe. Unknown and unowned sessions are not found.
func (g *Gateway) EndSession(ctx context.Context, sessionID, userID string) error {
	session, err := g.session(ctx, sessionID, userID, "end session")
	if err != nil {
		return err
	}

	transitioned, err := g.store.EndSession(ctx, sessionID, userID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "ingest", "end session", "", err)
	}
	if !transitioned {
		// Lost the race or the session already ended. Either way the
		// transition was observed exactly once elsewhere.
		g.logger.Debug("end already applied", logging.String(logging.FieldSession, sessionID))
		return nil
	}

	g.logger.Info("session ended", logging.String(logging.FieldSession, sessionID))
	if g.scheduler != nil {
		g.scheduler.Schedule(sessionID)
	}
	g.notifySessionEnded(ctx, session)
	return nil
}

// SubmitText appends one transcript chunk to an owned session.
func (g *Gateway) SubmitText(ctx context.Context, sessionID, userID string, seekEnd float64, text string) error {
	if _, err := g.session(ctx, sessionID, userID, "submit text"); err != nil {
		return err
	}
	if _, err := g.store.AppendTextSegment(ctx, sessionID, seekEnd, text); err != nil {
		return services.Wrap(services.ErrStorage, "ingest", "submit text", "", err)
	}
	return nil
}

// SubmitAudio stores one uploaded audio chunk on disk and records its
// metadata row. The file is written first; if the row insert fails the file
// is removed so no unreferenced bytes linger.
func (g *Gateway) SubmitAudio(ctx context.Context, sessionID, userID, segmentID, mimeType string, audio io.Reader) (*recitals.AudioSegment, error) {
	if _, err := g.session(ctx, sessionID, userID, "submit audio"); err != nil {
		return nil, err
	}

	sequential, err := strconv.ParseInt(segmentID, 10, 64)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "submit audio",
			fmt.Sprintf("segment id %q is not numeric", segmentID), nil)
	}

	filename := fmt.Sprintf("%s%s.seg.%s", sessionID, extensionForMIME(mimeType), segmentID)
	if err := g.writeSegmentFile(filename, audio); err != nil {
		return nil, services.Wrap(services.ErrStorage, "ingest", "submit audio", "write segment file", err)
	}

	segment, err := g.store.AppendAudioSegment(ctx, sessionID, sequential, filename, mimeType)
	if err != nil {
		if removeErr := os.Remove(filepath.Join(g.contentDir, filename)); removeErr != nil {
			g.logger.Warn("orphaned segment file left behind",
				logging.String("filename", filename),
				logging.Error(removeErr))
		}
		return nil, services.Wrap(services.ErrStorage, "ingest", "submit audio", "record segment", err)
	}

	g.logger.Debug("audio segment stored",
		logging.String(logging.FieldSession, sessionID),
		logging.Int64("sequential", sequential),
		logging.String("filename", filename))
	return segment, nil
}

func (g *Gateway) writeSegmentFile(filename string, audio io.Reader) error {
	target := filepath.Join(g.contentDir, filename)
	tmp := target + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, audio); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (g *Gateway) session(ctx context.Context, sessionID, userID, operation string) (*recitals.Session, error) {
	session, err := g.store.SessionForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "ingest", operation, "", err)
	}
	if session == nil {
		return nil, services.Wrap(services.ErrNotFound, "ingest", operation, "recital session not found", nil)
	}
	return session, nil
}

func (g *Gateway) notifySessionEnded(ctx context.Context, session *recitals.Session) {
	user, err := g.store.UserByID(ctx, session.UserID)
	if err != nil || user == nil {
		g.logger.Warn("skipping end notification, owner lookup failed",
			logging.String(logging.FieldSession, session.ID),
			logging.Error(err))
		return
	}
	if err := g.notifier.NotifySessionEnded(ctx, user.Email, session.ID); err != nil {
		g.logger.Warn("end notification failed",
			logging.String(logging.FieldSession, session.ID),
			logging.Error(err))
	}
}
