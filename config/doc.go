// Package config handles application configuration loading and validation.
//
// Configuration is loaded from config.yml and validated using struct tags.
// The schedule section (service hours, fare periods, express windows,
// festive calendar) degrades to a hard-coded default schedule when absent,
// so the rest of the system never observes a missing schedule.
package config
