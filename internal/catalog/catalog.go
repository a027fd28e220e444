package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Entry is one rule in a catalog document
type Entry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
	Pattern     string `yaml:"pattern"`
	Remediation string `yaml:"remediation"`
	Status      string `yaml:"status,omitempty"`
}

type catalogFile struct {
	Rules []Entry `yaml:"rules"`
}

// Rule converts the entry to a domain rule. Catalog rules are STATIC and
// default to ACTIVE.
func (e Entry) Rule() *rule.SecurityRule {
	status := rule.StatusActive
	if e.Status != "" {
		status = rule.Status(strings.ToUpper(e.Status))
	}
	return &rule.SecurityRule{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		Severity:    rule.Severity(strings.ToUpper(e.Severity)),
		Pattern:     e.Pattern,
		Remediation: e.Remediation,
		Origin:      rule.OriginStatic,
		Status:      status,
	}
}

// Parse decodes a catalog document
func Parse(data []byte) ([]*rule.SecurityRule, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rule catalog: %w", err)
	}
	rules := make([]*rule.SecurityRule, 0, len(doc.Rules))
	for _, e := range doc.Rules {
		rules = append(rules, e.Rule())
	}
	return rules, nil
}

// Defaults returns the embedded static rules
func Defaults() ([]*rule.SecurityRule, error) {
	return Parse(defaultsYAML)
}

// Catalog seeds and reloads static rules through the lifecycle service
type Catalog struct {
	service rule.Service
	path    string
	watch   bool
	logger  *logger.Logger
	watcher *fsnotify.Watcher
}

// New creates a catalog over the embedded defaults and an optional external
// rules file.
func New(service rule.Service, cfg config.CatalogConfig, log *logger.Logger) *Catalog {
	return &Catalog{
		service: service,
		path:    cfg.RulesFile,
		watch:   cfg.Watch,
		logger:  log.WithComponent("catalog"),
	}
}

// Seed loads the embedded defaults plus the optional external file into the
// store. Rules already stored with identical content are left untouched, so
// restarts do not pile up version snapshots.
func (c *Catalog) Seed(ctx context.Context) error {
	rules, err := Defaults()
	if err != nil {
		return err
	}

	if c.path != "" {
		external, err := c.readFile()
		if err != nil {
			return err
		}
		rules = append(rules, external...)
	}

	return c.load(ctx, rules, "catalog seed")
}

// Reload re-reads the external rules file. No-op without one.
func (c *Catalog) Reload(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	rules, err := c.readFile()
	if err != nil {
		return err
	}
	return c.load(ctx, rules, "catalog reload")
}

func (c *Catalog) readFile() ([]*rule.SecurityRule, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", c.path, err)
	}
	return Parse(data)
}

func (c *Catalog) load(ctx context.Context, rules []*rule.SecurityRule, reason string) error {
	var loaded, skipped, failed int
	for _, r := range rules {
		existing, err := c.service.GetByID(ctx, r.ID)
		if err == nil && sameContent(existing, r) {
			skipped++
			continue
		}

		if _, err := c.service.Add(ctx, r, reason); err != nil {
			failed++
			c.logger.WithFields(map[string]interface{}{
				"rule_id": r.ID,
				"error":   err.Error(),
			}).Warn("Skipping invalid catalog rule")
			continue
		}
		loaded++
	}

	c.logger.WithFields(map[string]interface{}{
		"loaded":  loaded,
		"skipped": skipped,
		"failed":  failed,
	}).Info("Rule catalog loaded")
	return nil
}

// sameContent compares the catalog-managed fields. Status is not compared:
// operator lifecycle decisions survive reseeding of unchanged rules.
func sameContent(a, b *rule.SecurityRule) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Severity == b.Severity &&
		a.Pattern == b.Pattern &&
		a.Remediation == b.Remediation &&
		a.Origin == b.Origin
}

// Watch starts watching the external rules file for changes and reloads on
// write. No-op when watching is disabled or no file is configured.
func (c *Catalog) Watch(ctx context.Context) error {
	if !c.watch || c.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(c.path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch rules file %s: %w", c.path, err)
	}
	c.watcher = watcher

	go c.watchLoop(ctx)

	c.logger.With("path", c.path).Info("Watching rules file")
	return nil
}

func (c *Catalog) watchLoop(ctx context.Context) {
	defer c.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c.logger.With("path", c.path).Info("Rules file changed, reloading")
			if err := c.Reload(ctx); err != nil {
				c.logger.ErrorWithErr(err, "Failed to reload rules file")
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.ErrorWithErr(err, "Rules file watcher error")
		}
	}
}
