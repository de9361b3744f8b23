package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"agendei/internal/clock"
	"agendei/internal/model"
)

// ResourceConfig is a professional or a lodging unit of a business.
type ResourceConfig struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Capacity int    `yaml:"capacity"`
	IsActive *bool  `yaml:"is_active,omitempty"`
}

// ServiceConfig is a bookable service.
type ServiceConfig struct {
	ID              int64  `yaml:"id"`
	Name            string `yaml:"name"`
	DurationMinutes int    `yaml:"duration_minutes"`
	PriceCents      int64  `yaml:"price_cents"`
	IsActive        *bool  `yaml:"is_active,omitempty"`
}

// BusinessConfig is one tenant in businesses.yaml.
type BusinessConfig struct {
	ID        int64            `yaml:"id"`
	Name      string           `yaml:"name"`
	Kind      string           `yaml:"kind"`
	Hours     model.Hours      `yaml:"hours"`
	Stay      model.StayPolicy `yaml:"stay"`
	IsActive  *bool            `yaml:"is_active,omitempty"`
	Resources []ResourceConfig `yaml:"resources"`
	Services  []ServiceConfig  `yaml:"services"`
}

// BusinessesConfig is the root configuration for businesses.yaml.
type BusinessesConfig struct {
	Defaults struct {
		Hours model.Hours `yaml:"hours"`
	} `yaml:"defaults"`
	// Presets declares extra named weekly schedules selected by exact
	// working_days match.
	Presets    map[string]model.Weekly `yaml:"presets"`
	Businesses []BusinessConfig        `yaml:"businesses"`
}

// LoadBusinessesConfig loads and validates businesses configuration from a YAML file.
func LoadBusinessesConfig(path string) (*BusinessesConfig, error) {
	if path == "" {
		path = "configs/businesses.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read businesses config: %w", err)
	}
	return parseBusinessesConfig(data)
}

func parseBusinessesConfig(data []byte) (*BusinessesConfig, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg BusinessesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse businesses config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate businesses config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the catalog structure. Malformed hours are not errors:
// the resolver degrades them to default hours, and Warnings reports them.
func (c *BusinessesConfig) Validate() error {
	if len(c.Businesses) == 0 {
		return fmt.Errorf("no businesses defined")
	}

	ids := make(map[int64]bool)
	resourceIDs := make(map[int64]bool)
	serviceIDs := make(map[int64]bool)

	for i, b := range c.Businesses {
		if b.ID <= 0 {
			return fmt.Errorf("business[%d]: id must be positive, got %d", i, b.ID)
		}
		if ids[b.ID] {
			return fmt.Errorf("business[%d]: duplicate id %d", i, b.ID)
		}
		ids[b.ID] = true

		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("business[%d]: name is required", i)
		}
		switch model.BusinessKind(b.Kind) {
		case "", model.KindSlots, model.KindStay:
		default:
			return fmt.Errorf("business[%d]: unknown kind '%s'", i, b.Kind)
		}
		if b.Stay.MinStayNights < 0 || b.Stay.MinOccupancy < 0 {
			return fmt.Errorf("business[%d]: stay limits cannot be negative", i)
		}
		for j, h := range b.Hours.Holidays {
			if _, err := time.Parse(clock.DateLayout, strings.TrimSpace(h)); err != nil {
				return fmt.Errorf("business[%d].holidays[%d]: invalid date format '%s', expected YYYY-MM-DD", i, j, h)
			}
		}

		for j, r := range b.Resources {
			if r.ID <= 0 {
				return fmt.Errorf("business[%d].resources[%d]: id must be positive, got %d", i, j, r.ID)
			}
			if resourceIDs[r.ID] {
				return fmt.Errorf("business[%d].resources[%d]: duplicate id %d", i, j, r.ID)
			}
			resourceIDs[r.ID] = true
			if strings.TrimSpace(r.Name) == "" {
				return fmt.Errorf("business[%d].resources[%d]: name is required", i, j)
			}
			if r.Capacity < 0 {
				return fmt.Errorf("business[%d].resources[%d]: capacity cannot be negative", i, j)
			}
		}

		for j, s := range b.Services {
			if s.ID <= 0 {
				return fmt.Errorf("business[%d].services[%d]: id must be positive, got %d", i, j, s.ID)
			}
			if serviceIDs[s.ID] {
				return fmt.Errorf("business[%d].services[%d]: duplicate id %d", i, j, s.ID)
			}
			serviceIDs[s.ID] = true
			if s.DurationMinutes <= 0 && model.BusinessKind(b.Kind) != model.KindStay {
				return fmt.Errorf("business[%d].services[%d]: duration_minutes must be positive", i, j)
			}
		}
	}

	return nil
}

// Warnings lists hours values that will fall back to defaults at resolve time.
func (c *BusinessesConfig) Warnings() []string {
	var out []string
	check := func(where, value string) {
		if value == "" {
			return
		}
		if _, _, err := clock.ParseHM(value); err != nil {
			out = append(out, fmt.Sprintf("%s: %v", where, err))
		}
	}
	for i, b := range c.Businesses {
		prefix := fmt.Sprintf("business[%d]", i)
		check(prefix+".hours.opening_time", b.Hours.OpeningTime)
		check(prefix+".hours.closing_time", b.Hours.ClosingTime)
		check(prefix+".hours.saturday_closing_time", b.Hours.SaturdayClosingTime)
		if b.Hours.Weekly != nil {
			for d, day := range b.Hours.Weekly {
				check(fmt.Sprintf("%s.hours.weekly[%d].open", prefix, d), day.Open)
				check(fmt.Sprintf("%s.hours.weekly[%d].close", prefix, d), day.Close)
			}
		}
	}
	return out
}

// applyDefaults fills empty hours fields from the defaults section.
func (c *BusinessesConfig) applyDefaults() {
	def := c.Defaults.Hours
	for i := range c.Businesses {
		b := &c.Businesses[i]
		if b.Kind == "" {
			b.Kind = string(model.KindSlots)
		}
		if b.Hours.OpeningTime == "" {
			b.Hours.OpeningTime = def.OpeningTime
		}
		if b.Hours.ClosingTime == "" {
			b.Hours.ClosingTime = def.ClosingTime
		}
		if b.Hours.SaturdayClosingTime == "" {
			b.Hours.SaturdayClosingTime = def.SaturdayClosingTime
		}
		if b.Hours.WorkingDays == "" && b.Hours.Weekly == nil {
			b.Hours.WorkingDays = def.WorkingDays
		}
		b.Hours.Holidays = append(b.Hours.Holidays, def.Holidays...)
		for j := range b.Resources {
			if b.Resources[j].Kind == "" {
				b.Resources[j].Kind = string(model.ResourceProfessional)
				if model.BusinessKind(b.Kind) == model.KindStay {
					b.Resources[j].Kind = string(model.ResourceRoom)
				}
			}
		}
	}
}

// Model converts the entry to domain values.
func (b *BusinessConfig) Model() (model.Business, []model.Resource, []model.Service) {
	business := model.Business{
		ID:       b.ID,
		Name:     b.Name,
		Kind:     model.BusinessKind(b.Kind),
		Hours:    b.Hours,
		Stay:     b.Stay,
		IsActive: active(b.IsActive),
	}
	resources := make([]model.Resource, 0, len(b.Resources))
	for _, r := range b.Resources {
		resources = append(resources, model.Resource{
			ID:         r.ID,
			BusinessID: b.ID,
			Name:       r.Name,
			Kind:       model.ResourceKind(r.Kind),
			Capacity:   r.Capacity,
			IsActive:   active(r.IsActive),
		})
	}
	services := make([]model.Service, 0, len(b.Services))
	for _, s := range b.Services {
		services = append(services, model.Service{
			ID:              s.ID,
			BusinessID:      b.ID,
			Name:            s.Name,
			DurationMinutes: s.DurationMinutes,
			PriceCents:      s.PriceCents,
			IsActive:        active(s.IsActive),
		})
	}
	return business, resources, services
}

func active(v *bool) bool {
	return v == nil || *v
}
