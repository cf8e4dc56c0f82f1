package config

import (
	"errors"
	"fmt"
	"strconv"
)

// Compression modes accepted by the backup tool.
const (
	CompressionAuto = "auto"
	CompressionOff  = "off"
	CompressionMax  = "max"
)

// Job describes one backup job. A fresh value is built from the config file on
// every reload; nothing but the jobname identifies a job across reloads, and a
// Job is never mutated while it is executing.
type Job struct {
	Name            string          `mapstructure:"jobname"`
	Sources         []string        `mapstructure:"sources"`
	Destination     string          `mapstructure:"destination"`
	Password        string          `mapstructure:"password"`
	ExcludePatterns []string        `mapstructure:"exclude_patterns"`
	BridgeUser      string          `mapstructure:"bridge_user"`
	BridgePassword  string          `mapstructure:"bridge_password"`
	UseBridge       bool            `mapstructure:"use_bridge"`
	Compression     string          `mapstructure:"compression"`
	Retention       RetentionPolicy `mapstructure:"retention"`
	Interval        string          `mapstructure:"interval"`
}

func (j *Job) applyDefaults() {
	if j.Compression == "" {
		j.Compression = CompressionAuto
	}
}

// Validate checks everything except the cron expression, which is evaluated
// (and a bad one skipped, not fataled) at scheduling time so one broken job
// cannot take the whole daemon down.
func (j *Job) Validate() error {
	if j.Name == "" {
		return errors.New("jobname must not be empty")
	}
	if len(j.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	for _, s := range j.Sources {
		if s == "" {
			return errors.New("sources must not contain empty paths")
		}
	}
	if j.Destination == "" {
		return errors.New("destination must not be empty")
	}
	if j.Password == "" {
		return errors.New("password must not be empty")
	}
	if j.Interval == "" {
		return errors.New("interval must not be empty")
	}
	switch j.Compression {
	case CompressionAuto, CompressionOff, CompressionMax:
	default:
		// restic also accepts explicit numeric levels
		if _, err := strconv.Atoi(j.Compression); err != nil {
			return fmt.Errorf("invalid compression mode %q", j.Compression)
		}
	}
	if j.UseBridge && (j.BridgeUser == "" || j.BridgePassword == "") {
		return errors.New("bridged transport requires bridge_user and bridge_password")
	}
	if err := j.Retention.validate(); err != nil {
		return err
	}
	return nil
}

// RetentionPolicy holds how many snapshots to keep per time granularity.
// A zero count switches that dimension off.
type RetentionPolicy struct {
	Hourly  int `mapstructure:"hourly"`
	Daily   int `mapstructure:"daily"`
	Weekly  int `mapstructure:"weekly"`
	Monthly int `mapstructure:"monthly"`
	Yearly  int `mapstructure:"yearly"`
}

func (p RetentionPolicy) validate() error {
	for _, n := range []int{p.Hourly, p.Daily, p.Weekly, p.Monthly, p.Yearly} {
		if n < 0 {
			return errors.New("retention counts must not be negative")
		}
	}
	return nil
}

// Flags renders the policy as forget-command arguments, one keep flag per
// non-zero dimension. When every dimension is off it falls back to keeping the
// last snapshot, so pruning never runs without a keep rule (restic would
// otherwise refuse, and an unbounded repository is worse).
func (p RetentionPolicy) Flags() []string {
	var flags []string
	if p.Hourly > 0 {
		flags = append(flags, "--keep-hourly", strconv.Itoa(p.Hourly))
	}
	if p.Daily > 0 {
		flags = append(flags, "--keep-daily", strconv.Itoa(p.Daily))
	}
	if p.Weekly > 0 {
		flags = append(flags, "--keep-weekly", strconv.Itoa(p.Weekly))
	}
	if p.Monthly > 0 {
		flags = append(flags, "--keep-monthly", strconv.Itoa(p.Monthly))
	}
	if p.Yearly > 0 {
		flags = append(flags, "--keep-yearly", strconv.Itoa(p.Yearly))
	}
	if len(flags) == 0 {
		flags = []string{"--keep-last", "1"}
	}
	return flags
}
