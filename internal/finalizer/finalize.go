package finalizer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"recital/internal/logging"
	"recital/internal/recitals"
	"recital/internal/services"
)

// Finalize merges all audio segments of an ended session, ordered by
// sequential, into one artifact file and marks the session finalized. The
// artifact is written to a temp path and renamed into place, so a re-run
// after a crash produces the same result without leaving a torn file.
// Sessions without audio finalize with no artifact.
func (m *Manager) Finalize(ctx context.Context, session *recitals.Session) error {
	segments, err := m.store.ListAudioSegments(ctx, session.ID)
	if err != nil {
		return services.Wrap(services.ErrStorage, "finalizer", "finalize", "list segments", err)
	}

	artifactName := ""
	if len(segments) > 0 {
		if err := checkCompatibleSegments(segments); err != nil {
			return err
		}
		artifactName = session.ID + ".light" + artifactExtension(segments[0].Filename)
		if err := m.writeArtifact(ctx, artifactName, segments); err != nil {
			return err
		}
	}

	updated, err := m.store.SetFinalized(ctx, session.ID, artifactName)
	if err != nil {
		return services.Wrap(services.ErrStorage, "finalizer", "finalize", "mark finalized", err)
	}
	if !updated {
		// The session left the ended state underneath us, most likely a
		// concurrent disavow. Nothing more to do.
		m.logger.Warn("session no longer eligible for finalization",
			logging.String(logging.FieldSession, session.ID))
		return nil
	}

	m.logger.Info("session finalized",
		logging.String(logging.FieldSession, session.ID),
		logging.String("artifact", artifactName),
		logging.Int("segments", len(segments)))
	m.notifyFinalized(ctx, session, artifactName)
	return nil
}

func (m *Manager) writeArtifact(ctx context.Context, artifactName string, segments []*recitals.AudioSegment) error {
	contentDir := m.cfg.Paths.DataDir
	target := filepath.Join(contentDir, artifactName)
	tmp := target + ".tmp"

	out, err := os.Create(tmp)
	if err != nil {
		return services.Wrap(services.ErrStorage, "finalizer", "finalize", "create artifact", err)
	}
	defer os.Remove(tmp)

	for _, segment := range segments {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		if err := appendSegment(out, filepath.Join(contentDir, segment.Filename)); err != nil {
			out.Close()
			return services.Wrap(services.ErrStorage, "finalizer", "finalize",
				fmt.Sprintf("append segment %d", segment.Sequential), err)
		}
	}
	if err := out.Close(); err != nil {
		return services.Wrap(services.ErrStorage, "finalizer", "finalize", "close artifact", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return services.Wrap(services.ErrStorage, "finalizer", "finalize", "publish artifact", err)
	}
	return nil
}

func appendSegment(out io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = io.Copy(out, in)
	return err
}

func (m *Manager) notifyFinalized(ctx context.Context, session *recitals.Session, artifactName string) {
	user, err := m.store.UserByID(ctx, session.UserID)
	if err != nil || user == nil {
		m.logger.Warn("skipping finalize notification, owner lookup failed",
			logging.String(logging.FieldSession, session.ID),
			logging.Error(err))
		return
	}
	if err := m.notifier.NotifySessionFinalized(ctx, user.Email, session.ID, artifactName); err != nil {
		m.logger.Warn("finalize notification failed",
			logging.String(logging.FieldSession, session.ID),
			logging.Error(err))
	}
}

// checkCompatibleSegments rejects sessions whose segments declare different
// container types. Byte concatenation only yields a playable stream when
// every chunk came from the same capture format; a mismatch leaves the
// session ended for operator follow-up instead of producing a broken file.
func checkCompatibleSegments(segments []*recitals.AudioSegment) error {
	base := mimeBase(segments[0].MimeType)
	for _, segment := range segments[1:] {
		if mimeBase(segment.MimeType) != base {
			return services.Wrap(services.ErrValidation, "finalizer", "finalize",
				fmt.Sprintf("segment %d type %q does not match %q", segment.Sequential, segment.MimeType, base), nil)
		}
	}
	return nil
}

func mimeBase(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.TrimSpace(strings.ToLower(base))
}

// artifactExtension recovers the capture extension from a segment filename
// of the form "<session><ext>.seg.<n>".
func artifactExtension(segmentFilename string) string {
	base := segmentFilename
	if idx := strings.Index(base, ".seg."); idx >= 0 {
		base = base[:idx]
	}
	if ext := filepath.Ext(base); ext != "" {
		return ext
	}
	return ".bin"
}
