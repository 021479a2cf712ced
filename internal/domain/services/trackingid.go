package services

import (
	"context"
	"crypto/rand"
	"io"
	"strconv"
	"strings"
	"time"

	"xpose-triage/internal/domain/models"
	"xpose-triage/pkg/logger"
)

// TrackingAlphabet is the symbol set for tracking IDs. I, L, O and U are left
// out so IDs survive being read aloud or copied by hand.
const TrackingAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const (
	defaultTrackingPrefix = "Xpose"
	rejectedMarker        = "RJCT"
	trackingGroupSize     = 4
	acceptedGroups        = 4
	rejectedGroups        = 3
	defaultMaxAttempts    = 10
)

// IDExistenceChecker reports whether a tracking ID is already taken
type IDExistenceChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// TrackingIDGenerator issues checksummed tracking IDs that are unique in the store
type TrackingIDGenerator struct {
	prefix      string
	maxAttempts int
	checker     IDExistenceChecker
	random      io.Reader
	now         func() time.Time
	logger      *logger.Logger
}

// TrackingIDOption customizes a TrackingIDGenerator
type TrackingIDOption func(*TrackingIDGenerator)

// WithRandomSource replaces crypto/rand, for deterministic tests
func WithRandomSource(r io.Reader) TrackingIDOption {
	return func(g *TrackingIDGenerator) { g.random = r }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) TrackingIDOption {
	return func(g *TrackingIDGenerator) { g.now = now }
}

// NewTrackingIDGenerator creates a generator backed by the given existence check
func NewTrackingIDGenerator(prefix string, maxAttempts int, checker IDExistenceChecker, log *logger.Logger, opts ...TrackingIDOption) *TrackingIDGenerator {
	if prefix == "" {
		prefix = defaultTrackingPrefix
	}
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	g := &TrackingIDGenerator{
		prefix:      prefix,
		maxAttempts: maxAttempts,
		checker:     checker,
		random:      rand.Reader,
		now:         time.Now,
		logger:      log.WithComponent("tracking-id"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewAcceptedID returns a fresh ID of the form PREFIX-XXXX-XXXX-XXXX-XXXX-C
func (g *TrackingIDGenerator) NewAcceptedID(ctx context.Context) (string, error) {
	return g.generate(ctx, false)
}

// NewRejectedID returns a fresh ID of the form PREFIX-RJCT-XXXX-XXXX-XXXX-C
func (g *TrackingIDGenerator) NewRejectedID(ctx context.Context) (string, error) {
	return g.generate(ctx, true)
}

// NewID returns an ID of the shape matching the outcome
func (g *TrackingIDGenerator) NewID(ctx context.Context, status models.OutcomeStatus) (string, error) {
	return g.generate(ctx, status == models.OutcomeRejected)
}

func (g *TrackingIDGenerator) generate(ctx context.Context, rejected bool) (string, error) {
	groups := acceptedGroups
	if rejected {
		groups = rejectedGroups
	}

	var id string
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		core, err := g.drawCore(groups*trackingGroupSize, rejected)
		if err != nil {
			return "", err
		}
		id = g.format(core, rejected)

		exists, err := g.checker.Exists(ctx, id)
		if err != nil {
			return "", &models.ExternalServiceError{Service: "store", Err: err}
		}
		if !exists {
			return id, nil
		}
		g.logger.Debug().Str("id", id).Int("attempt", attempt).Msg("tracking id collision, retrying")
	}

	// Every attempt collided. The ID space makes this practically impossible,
	// so it points at a broken random source or checker.
	suffixed := id + "-" + strings.ToUpper(strconv.FormatInt(g.now().UnixMilli(), 36))
	g.logger.Warn().
		Str("id", suffixed).
		Int("attempts", g.maxAttempts).
		Msg("tracking id collisions exhausted, using timestamp suffix")
	return suffixed, nil
}

// drawCore draws core symbols. An accepted core never starts with the
// rejected marker, otherwise the two shapes would be ambiguous.
func (g *TrackingIDGenerator) drawCore(n int, rejected bool) ([]byte, error) {
	for {
		core, err := g.randomSymbols(n)
		if err != nil {
			return nil, err
		}
		if rejected || string(core[:trackingGroupSize]) != rejectedMarker {
			return core, nil
		}
	}
}

func (g *TrackingIDGenerator) randomSymbols(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return nil, err
	}
	// 256 is a multiple of 32, so masking keeps the distribution uniform
	for i := range buf {
		buf[i] = TrackingAlphabet[buf[i]&0x1f]
	}
	return buf, nil
}

func (g *TrackingIDGenerator) format(core []byte, rejected bool) string {
	var sb strings.Builder
	sb.WriteString(g.prefix)
	if rejected {
		sb.WriteByte('-')
		sb.WriteString(rejectedMarker)
	}
	for i := 0; i < len(core); i += trackingGroupSize {
		sb.WriteByte('-')
		sb.Write(core[i : i+trackingGroupSize])
	}
	sb.WriteByte('-')
	sb.WriteByte(TrackingChecksum(core))
	return sb.String()
}

// TrackingChecksum returns alphabet[sum of symbol indexes mod 32]. It catches
// single-symbol typos but not transpositions.
func TrackingChecksum(core []byte) byte {
	sum := 0
	for _, c := range core {
		sum += strings.IndexByte(TrackingAlphabet, c)
	}
	return TrackingAlphabet[sum%len(TrackingAlphabet)]
}

// VerifyTrackingID checks the shape and checksum of an accepted or rejected ID
func VerifyTrackingID(id string) bool {
	parts := strings.Split(id, "-")
	if len(parts) < 2 {
		return false
	}
	// prefix, optional RJCT marker, core groups, checksum
	body := parts[1:]
	wantGroups := acceptedGroups
	if body[0] == rejectedMarker {
		body = body[1:]
		wantGroups = rejectedGroups
	}
	if len(body) != wantGroups+1 {
		return false
	}

	core := make([]byte, 0, wantGroups*trackingGroupSize)
	for _, group := range body[:wantGroups] {
		if len(group) != trackingGroupSize {
			return false
		}
		for i := 0; i < len(group); i++ {
			if strings.IndexByte(TrackingAlphabet, group[i]) < 0 {
				return false
			}
		}
		core = append(core, group...)
	}

	check := body[wantGroups]
	return len(check) == 1 && check[0] == TrackingChecksum(core)
}

// IsRejectedID reports whether id has the rejected shape
func IsRejectedID(id string) bool {
	parts := strings.SplitN(id, "-", 3)
	return len(parts) >= 2 && parts[1] == rejectedMarker
}
