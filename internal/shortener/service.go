package shortener

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// MaxTries is the retry budget for auto-generated codes. Exhausting it means
// the code space is effectively saturated and the store should be treated as
// degraded; callers must not retry further.
const MaxTries = 100

// shortRe validates caller-supplied short codes.
var shortRe = regexp.MustCompile(`^[A-Za-z0-9]{1,16}$`)

// ErrInvalidShort is returned when a caller-supplied code violates the
// allowed format (1-16 characters, latin letters and digits only).
var ErrInvalidShort = errors.New("invalid short link format")

// ErrTriesExhausted is returned when MaxTries generated codes all collided.
var ErrTriesExhausted = errors.New("could not generate a unique short link")

// TargetKind classifies what a resolved mapping points at.
type TargetKind int

const (
	// TargetExternalURL is an absolute http(s) URL to redirect to.
	TargetExternalURL TargetKind = iota
	// TargetDiskPath is a path inside the remote disk storage.
	TargetDiskPath
)

// Service is the allocation and resolution engine for short links.
type Service struct {
	store    Store
	reserved map[string]bool // lower-cased words that can never become codes
}

// NewService creates a Service. Reserved words collide with route names and
// are rejected case-insensitively in both allocation modes.
func NewService(store Store, reserved []string) *Service {
	set := make(map[string]bool, len(reserved))
	for _, w := range reserved {
		set[strings.ToLower(w)] = true
	}
	return &Service{store: store, reserved: set}
}

// Allocate creates a mapping from a short code to original.
//
// With a non-empty candidate (after trimming) the code is validated and
// persisted as-is; if it loses the uniqueness race against a concurrent
// request it fails with ErrShortTaken rather than falling back to
// generation. With no candidate, random codes are drawn until one commits
// or MaxTries attempts have collided.
func (s *Service) Allocate(ctx context.Context, candidate, original string) (*URLMap, error) {
	if original == "" {
		return nil, errors.New("original target must not be empty")
	}

	candidate = strings.TrimSpace(candidate)
	if candidate != "" {
		return s.allocateExplicit(ctx, candidate, original)
	}
	return s.allocateGenerated(ctx, original)
}

func (s *Service) allocateExplicit(ctx context.Context, candidate, original string) (*URLMap, error) {
	if !shortRe.MatchString(candidate) {
		return nil, ErrInvalidShort
	}
	if s.reserved[strings.ToLower(candidate)] {
		return nil, ErrShortTaken
	}

	// Pre-check for a friendlier error on the common path. Correctness does
	// not depend on it: a concurrent insert between this lookup and ours is
	// caught by the store's uniqueness constraint below.
	if _, err := s.store.GetByShort(ctx, candidate); err == nil {
		return nil, ErrShortTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check short occupancy: %w", err)
	}

	m, err := s.store.Insert(ctx, original, candidate)
	if err != nil {
		if errors.Is(err, ErrShortTaken) {
			// Lost the last-instant race. An explicit candidate is never
			// silently replaced with a generated one.
			return nil, ErrShortTaken
		}
		return nil, fmt.Errorf("insert mapping: %w", err)
	}
	return m, nil
}

func (s *Service) allocateGenerated(ctx context.Context, original string) (*URLMap, error) {
	for tries := 0; tries < MaxTries; {
		code, err := GenerateShort(DefaultShortLength)
		if err != nil {
			return nil, fmt.Errorf("generate short: %w", err)
		}
		// A reserved draw is discarded without consuming a try.
		if s.reserved[strings.ToLower(code)] {
			continue
		}
		tries++

		m, err := s.store.Insert(ctx, original, code)
		if err != nil {
			if errors.Is(err, ErrShortTaken) {
				continue // expected collision, draw again
			}
			return nil, fmt.Errorf("insert mapping: %w", err)
		}
		return m, nil
	}
	return nil, ErrTriesExhausted
}

// Resolve looks up a mapping by its exact short code.
func (s *Service) Resolve(ctx context.Context, short string) (*URLMap, error) {
	m, err := s.store.GetByShort(ctx, short)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("resolve short: %w", err)
	}
	return m, nil
}

// IsReserved reports whether the code case-insensitively matches a reserved
// word. Reserved codes route to their named page, never to a lookup.
func (s *Service) IsReserved(code string) bool {
	return s.reserved[strings.ToLower(code)]
}

// ClassifyTarget decides how a resolved original should be served: absolute
// http(s) URLs redirect externally, anything else is a disk storage path.
func ClassifyTarget(original string) TargetKind {
	if strings.HasPrefix(original, "http://") || strings.HasPrefix(original, "https://") {
		return TargetExternalURL
	}
	return TargetDiskPath
}
