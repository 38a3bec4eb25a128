package prerender

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-prerender/internal/cachepolicy"
	"github.com/JakeFAU/jobboard-prerender/internal/vacancy"
)

// loadHomepage fetches the newest active jobs, capped at HomepageLimit.
func (h *Handler) loadHomepage(ctx context.Context) ([]vacancy.Job, error) {
	if h.cfg.Jobs == nil {
		return nil, ErrNotConfigured
	}
	jobs, err := h.cfg.Jobs.Recent(ctx)
	if err != nil {
		return nil, fmt.Errorf("load homepage jobs: %w", err)
	}
	now := h.clock.Now()
	active := make([]vacancy.Job, 0, min(len(jobs), h.cfg.HomepageLimit))
	for _, job := range jobs {
		if job.Expired(now) {
			continue
		}
		active = append(active, job)
		if len(active) == h.cfg.HomepageLimit {
			break
		}
	}
	h.logger.Info("homepage jobs loaded", zap.Int("active", len(active)), zap.Int("total", len(jobs)))
	return active, nil
}

func (h *Handler) homepageOutcome(ctx context.Context) *outcome {
	if !h.Configured() {
		h.logger.Error("datastore credentials missing", zap.Error(ErrNotConfigured))
		return h.configError()
	}
	jobs, err := h.homepage.Get(ctx)
	if err != nil {
		return h.failure("Error generating homepage", err)
	}
	body, err := h.renderer.Homepage(jobs, h.clock.Now())
	if err != nil {
		return h.failure("Error generating homepage", err)
	}
	age, _ := h.homepage.Age()
	hdr := http.Header{}
	hdr.Set("X-Edge-Function", EdgeHomepage)
	hdr.Set("X-Jobs-Count", strconv.Itoa(len(jobs)))
	hdr.Set("X-Cache-Age", strconv.FormatInt(int64(age.Round(time.Second)/time.Second), 10))
	cachepolicy.Apply(hdr, cachepolicy.Homepage())
	return &outcome{status: http.StatusOK, body: body, header: hdr}
}
