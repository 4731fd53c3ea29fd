// Package translate turns team names printed on the bookmaker pages into
// stable lower-case English names, memoising every lookup.
package translate

import (
	"context"
	"sort"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/odds-watch/internal/metrics"
)

// Backend performs the actual translation of a sanitized name.
type Backend interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Identity is a Backend that returns its input; used when no service is configured.
type Identity struct{}

// Translate returns text unchanged
func (Identity) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

var stripped = strings.NewReplacer(" ", "", "(", "", ")", "", ",", "", "女", "")

// Sanitize removes spaces, brackets, commas and the women's marker and lower-cases the name.
func Sanitize(name string) string {
	return strings.ToLower(strings.TrimSpace(stripped.Replace(name)))
}

// Translator memoises translations keyed by sanitized name.
type Translator struct {
	backend Backend
	memo    *cache.Cache
	logger  *logrus.Logger
}

// NewTranslator creates a translator; ttl <= 0 keeps entries forever.
func NewTranslator(backend Backend, ttl time.Duration, logger *logrus.Logger) *Translator {
	if backend == nil {
		backend = Identity{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	expiration := cache.NoExpiration
	if ttl > 0 {
		expiration = ttl
	}
	return &Translator{
		backend: backend,
		memo:    cache.New(expiration, 10*time.Minute),
		logger:  logger,
	}
}

// Seed preloads known translations.
func (t *Translator) Seed(entries map[string]string) {
	for name, translation := range entries {
		if key := Sanitize(name); key != "" {
			t.memo.Set(key, strings.ToLower(translation), cache.DefaultExpiration)
		}
	}
}

// Len returns the number of memoised names
func (t *Translator) Len() int {
	return t.memo.ItemCount()
}

// Translate returns the English name for a team. A memo entry whose key
// contains the sanitized name, or is contained by it, is reused. On backend
// failure the original name is returned.
func (t *Translator) Translate(ctx context.Context, name string) string {
	key := Sanitize(name)
	if key == "" {
		return name
	}

	if hit, ok := t.lookup(key); ok {
		metrics.RecordTranslation("hit")
		return hit
	}

	translation, err := t.backend.Translate(ctx, key)
	if err != nil || strings.TrimSpace(translation) == "" {
		metrics.RecordTranslation("error")
		fields := logrus.Fields{"name": key}
		if err != nil {
			fields["error"] = err.Error()
		}
		t.logger.WithFields(fields).Warn("Team name translation failed")
		return name
	}

	translation = strings.ToLower(strings.TrimSpace(translation))
	t.memo.Set(key, translation, cache.DefaultExpiration)
	metrics.RecordTranslation("miss")
	t.logger.WithFields(logrus.Fields{
		"name":        key,
		"translation": translation,
	}).Info("Translated team name")
	return translation
}

func (t *Translator) lookup(key string) (string, bool) {
	if v, ok := t.memo.Get(key); ok {
		return v.(string), true
	}

	items := t.memo.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.Contains(k, key) || strings.Contains(key, k) {
			return items[k].Object.(string), true
		}
	}
	return "", false
}
