// Command apic-describe fabricates the firmware table for a described
// platform, runs interrupt controller discovery against simulated register
// files, brings the processors up, and prints the resulting controller and
// line registrations.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/meridian-os/platform/internal/apic"
	"github.com/meridian-os/platform/internal/apic/apicsim"
	"github.com/meridian-os/platform/internal/hw"
	"github.com/meridian-os/platform/internal/intctrl"
	"github.com/meridian-os/platform/internal/madt"
)

type platformDescription struct {
	Processors   int          `yaml:"processors"`
	LAPICAddress uint32       `yaml:"lapicAddress,omitempty"`
	IOAPICs      []chipConfig `yaml:"ioapics"`
}

type chipConfig struct {
	ID      uint8  `yaml:"id"`
	Address uint64 `yaml:"address"`
	GSIBase uint32 `yaml:"gsiBase"`
	Lines   uint32 `yaml:"lines,omitempty"`
}

func defaultDescription() platformDescription {
	return platformDescription{
		Processors:   2,
		LAPICAddress: 0xFEE00000,
		IOAPICs: []chipConfig{
			{ID: 0, Address: 0xFEC00000, GSIBase: 0, Lines: 24},
		},
	}
}

func loadDescription(path string) (platformDescription, error) {
	desc := defaultDescription()
	if path == "" {
		return desc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return desc, fmt.Errorf("read platform description: %w", err)
	}
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return desc, fmt.Errorf("parse platform description: %w", err)
	}

	if desc.Processors <= 0 {
		desc.Processors = 1
	}
	if desc.LAPICAddress == 0 {
		desc.LAPICAddress = 0xFEE00000
	}
	for i := range desc.IOAPICs {
		if desc.IOAPICs[i].Lines == 0 {
			desc.IOAPICs[i].Lines = 24
		}
	}
	return desc, nil
}

func buildTable(desc platformDescription) (*madt.Table, error) {
	cfg := madt.Config{LocalAPICAddress: desc.LAPICAddress}
	for i := 0; i < desc.Processors; i++ {
		cfg.LocalAPICs = append(cfg.LocalAPICs, madt.LocalAPIC{
			ProcessorID: uint8(i),
			ID:          uint8(i),
			Enabled:     true,
		})
	}
	for _, chip := range desc.IOAPICs {
		cfg.IOAPICs = append(cfg.IOAPICs, madt.IOAPIC{
			ID:      chip.ID,
			Address: chip.Address,
			GSIBase: chip.GSIBase,
		})
	}
	return madt.Parse(madt.Build(cfg))
}

func run(log *slog.Logger, configPath string) error {
	desc, err := loadDescription(configPath)
	if err != nil {
		return err
	}

	table, err := buildTable(desc)
	if err != nil {
		return err
	}

	mapper := hw.NewTableMapper()
	mapper.Add(uint64(desc.LAPICAddress), apicsim.NewLocalAPIC(0))
	for _, chip := range desc.IOAPICs {
		mapper.Add(chip.Address, apicsim.NewIOAPIC(chip.ID, chip.Lines))
	}

	platform, err := apic.NewPlatform(apic.PlatformConfig{
		Table:  table,
		Mapper: mapper,
		Log:    log,
	})
	if err != nil {
		return err
	}

	registry := intctrl.NewRegistry(log)
	if err := apic.Discover(platform, registry); err != nil {
		return err
	}

	controllers := registry.Controllers()
	if len(controllers) == 0 {
		return fmt.Errorf("no interrupt controllers discovered")
	}

	// Each chip's window is independent, so the I/O units come up in
	// parallel.
	var group errgroup.Group
	for _, ctrl := range controllers {
		group.Go(ctrl.Controller.InitializeIoUnit)
	}
	if err := group.Wait(); err != nil {
		return fmt.Errorf("initialize io units: %w", err)
	}

	boot := controllers[0].Controller
	bootID, err := boot.InitializeLocalUnit()
	if err != nil {
		return fmt.Errorf("initialize local unit: %w", err)
	}

	processors := make([]intctrl.Processor, controllers[0].ProcessorCount)
	count, err := boot.EnumerateProcessors(processors)
	if err != nil {
		return fmt.Errorf("enumerate processors: %w", err)
	}

	// Secondary bring-up stays sequential: all startup commands go
	// through the boot processor's single command register.
	for _, proc := range processors[:count] {
		if proc.PhysicalID == bootID || proc.Flags&intctrl.ProcessorPresent == 0 {
			continue
		}
		if err := boot.StartProcessor(proc.PhysicalID, 0x8000); err != nil {
			return fmt.Errorf("start processor %d: %w", proc.PhysicalID, err)
		}
	}

	for _, ctrl := range controllers {
		log.Info("controller",
			"id", ctrl.Identifier,
			"processors", ctrl.ProcessorCount,
			"priorities", ctrl.PriorityCount)
	}
	for _, lines := range registry.Lines() {
		gsi := "none"
		if lines.GSIBase != intctrl.GSINone {
			gsi = fmt.Sprintf("%d", lines.GSIBase)
		}
		log.Info("lines",
			"controller", lines.Controller,
			"type", lines.Type.String(),
			"first", lines.First,
			"last", lines.Last,
			"gsiBase", gsi)
	}

	return nil
}

func main() {
	configPath := flag.String("config", "", "platform description YAML")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(log, *configPath); err != nil {
		log.Error("apic-describe failed", "err", err)
		os.Exit(1)
	}
}
