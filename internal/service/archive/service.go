package archive

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"platecam/internal/dto"
	"platecam/internal/logger"
	"platecam/internal/model"
	"platecam/internal/repository"
	"platecam/internal/timeutil"
)

// Publisher receives pipeline events.
type Publisher interface {
	Publish(event dto.Event)
}

// Options configure the archive loop.
type Options struct {
	ResultDirectory string
	UploadedDirName string
	ProbeURL        string
	ProbeTimeout    time.Duration
	Interval        time.Duration
}

// Service packages finished clip folders and ships them to the collection server.
type Service struct {
	opts      Options
	packager  *Packager
	transfer  Transfer
	probe     func(ctx context.Context) bool
	clipRepo  repository.ClipRepository
	publisher Publisher
	clock     timeutil.Clock
	logger    *logger.Logger
}

func NewService(opts Options, packager *Packager, transfer Transfer, httpClient *http.Client, clipRepo repository.ClipRepository, publisher Publisher, clock timeutil.Clock, logger *logger.Logger) *Service {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	s := &Service{
		opts:      opts,
		packager:  packager,
		transfer:  transfer,
		clipRepo:  clipRepo,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
	s.probe = func(ctx context.Context) bool {
		return Probe(ctx, httpClient, opts.ProbeURL, opts.ProbeTimeout)
	}
	return s
}

// Run repeats RunOnce until ctx is cancelled. Cancellation is only observed
// between iterations.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("Archive loop started for %s", s.opts.ResultDirectory)
	for {
		s.RunOnce(ctx)
		if ctx.Err() != nil {
			s.logger.Info("Archive loop stopped")
			return
		}
		select {
		case <-ctx.Done():
		case <-s.clock.After(s.opts.Interval):
		}
	}
}

// RunOnce packages every stable folder and, when the server answers, uploads every archive.
func (s *Service) RunOnce(ctx context.Context) {
	s.packageAll()

	if !s.probe(context.WithoutCancel(ctx)) {
		s.logger.Warning("Upload server %s unreachable, retrying later", s.opts.ProbeURL)
		return
	}
	s.uploadAll()
}

func (s *Service) packageAll() {
	pending, err := s.packager.Pending()
	if err != nil {
		s.logger.Error("Error listing result folders: %v", err)
		return
	}
	for _, identifier := range pending {
		if err := s.packager.Stable(identifier); err != nil {
			if !errors.Is(err, ErrNotStable) {
				s.logger.Error("Error checking %s: %v", identifier, err)
			}
			continue
		}
		s.updateStatus(identifier, model.ClipStable, "")

		archivePath, err := s.packager.Compress(identifier)
		if err != nil {
			s.logger.Error("Error packaging %s: %v", identifier, err)
			continue
		}
		s.logger.Info("Packaged %s into %s", identifier, archivePath)
		s.updateStatus(identifier, model.ClipCompressed, "")
	}
}

func (s *Service) uploadAll() {
	archives, err := s.packager.Archives()
	if err != nil {
		s.logger.Error("Error listing archives: %v", err)
		return
	}
	for _, archivePath := range archives {
		identifier := s.packager.Identifier(archivePath)
		if err := s.transfer.Send(archivePath); err != nil {
			if errors.Is(err, ErrSessionLost) {
				s.logger.Warning("Upload session of %s expired, restarting next pass", identifier)
			} else {
				s.logger.Error("Error uploading %s: %v", archivePath, err)
			}
			continue
		}

		dst, err := MoveUploaded(s.opts.ResultDirectory, s.opts.UploadedDirName, identifier)
		if err != nil {
			s.logger.Error("Error moving uploaded folder %s: %v", identifier, err)
			continue
		}
		if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("Error removing archive %s: %v", archivePath, err)
		}

		s.logger.Info("Uploaded %s", identifier)
		s.updateStatus(identifier, model.ClipUploaded, dst)
		if s.publisher != nil {
			s.publisher.Publish(dto.Event{
				Type:       dto.EventUploaded,
				Identifier: identifier,
				Path:       dst,
				Time:       s.clock.Now(),
			})
		}
	}
}

func (s *Service) updateStatus(identifier string, status model.ClipStatus, uploadedPath string) {
	if s.clipRepo == nil {
		return
	}
	if err := s.clipRepo.UpdateStatus(identifier, status, uploadedPath); err != nil {
		s.logger.Error("Error updating clip %s to %s: %v", identifier, status, err)
	}
}
