package domain

import (
	"fmt"
	"regexp"
)

// Status is the publication workflow state of a Study.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReview    Status = "review"
	StatusPublished Status = "published"
	// StatusDeleted is terminal: studies are deleted logically, never
	// removed from the store.
	StatusDeleted Status = "deleted"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusDraft, StatusReview, StatusPublished, StatusDeleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status %q: %w", s, ErrValidation)
	}
}

var studyIDRegex = regexp.MustCompile(`^hum\d{4}$`)

// Study is the top-level catalog aggregate: a bilingual, versioned research
// entry owning a set of dataset releases.
type Study struct {
	id            string
	title         Text
	summary       Text
	provider      Text
	status        Status
	owners        []string
	versions      []string // version keys, oldest first ("hum0001.v1", ...)
	latestVersion string   // label of the newest version ("v2")
	publishedAt   string   // ISO date, empty until first publication
	updatedAt     string   // ISO date of the last modification
}

// NewStudy validates and creates a draft Study with no versions linked yet.
func NewStudy(id string, title, summary, provider Text, owners []string) (Study, error) {
	if !studyIDRegex.MatchString(id) {
		return Study{}, fmt.Errorf("study id %q must match humNNNN: %w", id, ErrValidation)
	}
	if title.IsEmpty() {
		return Study{}, fmt.Errorf("study title is required: %w", ErrValidation)
	}
	if len(owners) == 0 {
		return Study{}, fmt.Errorf("study requires at least one owner: %w", ErrValidation)
	}
	return Study{
		id:       id,
		title:    title,
		summary:  summary,
		provider: provider,
		status:   StatusDraft,
		owners:   append([]string(nil), owners...),
	}, nil
}

// ReconstructStudy hydrates a Study from storage without validation.
func ReconstructStudy(
	id string, title, summary, provider Text, status Status,
	owners, versions []string, latestVersion, publishedAt, updatedAt string,
) Study {
	return Study{
		id: id, title: title, summary: summary, provider: provider,
		status: status, owners: owners, versions: versions,
		latestVersion: latestVersion, publishedAt: publishedAt, updatedAt: updatedAt,
	}
}

// ID returns the stable external identifier.
func (s *Study) ID() string { return s.id }

// Title returns the bilingual title.
func (s *Study) Title() Text { return s.title }

// Summary returns the bilingual summary.
func (s *Study) Summary() Text { return s.summary }

// Provider returns the bilingual providing-organization name.
func (s *Study) Provider() Text { return s.provider }

// Status returns the workflow status.
func (s *Study) Status() Status { return s.status }

// Owners returns the owner identity set.
func (s *Study) Owners() []string { return s.owners }

// Versions returns the ordered version keys, oldest first.
func (s *Study) Versions() []string { return s.versions }

// LatestVersion returns the label of the newest version.
func (s *Study) LatestVersion() string { return s.latestVersion }

// PublishedAt returns the first-publication date, empty if never published.
func (s *Study) PublishedAt() string { return s.publishedAt }

// UpdatedAt returns the last-modification date.
func (s *Study) UpdatedAt() string { return s.updatedAt }

// IsOwner reports whether the identity is in the owner set.
func (s *Study) IsOwner(actorID string) bool {
	for _, o := range s.owners {
		if o == actorID {
			return true
		}
	}
	return false
}

// VersionKey builds the storage key of one of this study's versions.
func (s *Study) VersionKey(label string) string { return s.id + "." + label }

// LatestVersionKey returns the key of the newest version, or "" when none
// is linked yet.
func (s *Study) LatestVersionKey() string {
	if s.latestVersion == "" {
		return ""
	}
	return s.VersionKey(s.latestVersion)
}

// WithStatus returns a copy in the given status, stamped with the dates.
// publishedAt is only recorded on the first transition into published.
func (s *Study) WithStatus(status Status, today string) Study {
	c := *s
	c.status = status
	c.updatedAt = today
	if status == StatusPublished && c.publishedAt == "" {
		c.publishedAt = today
	}
	return c
}

// WithVersionLinked returns a copy with a new version appended and the
// latest-version label advanced.
func (s *Study) WithVersionLinked(versionKey, label, today string) Study {
	c := *s
	c.versions = append(append([]string(nil), s.versions...), versionKey)
	c.latestVersion = label
	c.updatedAt = today
	return c
}
