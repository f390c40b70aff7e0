package scheduler

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Task is one declarative entry of the task template. Exactly one of Every
// (periodic) or Continuous must be set. Queue, MaxConcurrency and Expiration
// are optional overrides; unset values fall back to the per-command-prefix
// configuration and then to the hard defaults.
type Task struct {
	Name           string
	Command        []string
	Every          time.Duration
	Continuous     bool
	Queue          string
	MaxConcurrency int
	Expiration     time.Duration
}

// Template is the full task mapping, loaded fresh on every scheduler tick so
// edits take effect without a restart.
type Template struct {
	Tasks []Task
}

type rawTemplate struct {
	Tasks map[string]rawTask `yaml:"tasks"`
}

type rawTask struct {
	Command        []string `yaml:"command"`
	Every          string   `yaml:"every"`
	Continuous     bool     `yaml:"continuous"`
	Queue          string   `yaml:"queue"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	Expiration     string   `yaml:"expiration"`
}

// LoadTemplate reads and parses the template file.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, fmt.Errorf("read task template: %w", err)
	}
	return ParseTemplate(data)
}

// ParseTemplate parses YAML template data. Tasks come out sorted by name so
// a tick walks them in a stable order.
func ParseTemplate(data []byte) (Template, error) {
	var raw rawTemplate
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Template{}, fmt.Errorf("parse task template: %w", err)
	}

	tpl := Template{Tasks: make([]Task, 0, len(raw.Tasks))}
	for name, rt := range raw.Tasks {
		if len(rt.Command) == 0 {
			return Template{}, fmt.Errorf("task %s: command is required", name)
		}
		task := Task{
			Name:           name,
			Command:        rt.Command,
			Continuous:     rt.Continuous,
			Queue:          rt.Queue,
			MaxConcurrency: rt.MaxConcurrency,
		}
		if rt.Every != "" {
			every, err := time.ParseDuration(rt.Every)
			if err != nil {
				return Template{}, fmt.Errorf("task %s: parse every: %w", name, err)
			}
			task.Every = every
		}
		if rt.Expiration != "" {
			expiration, err := time.ParseDuration(rt.Expiration)
			if err != nil {
				return Template{}, fmt.Errorf("task %s: parse expiration: %w", name, err)
			}
			task.Expiration = expiration
		}
		if task.Continuous && task.Every > 0 {
			return Template{}, fmt.Errorf("task %s: every and continuous are mutually exclusive", name)
		}
		tpl.Tasks = append(tpl.Tasks, task)
	}

	sort.Slice(tpl.Tasks, func(i, j int) bool { return tpl.Tasks[i].Name < tpl.Tasks[j].Name })
	return tpl, nil
}
