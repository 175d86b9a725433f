package main

import (
	"fmt"

	"imselect/internal/config"
	"imselect/internal/logging"
	"imselect/internal/probe"
	"imselect/internal/switcher"
)

type app struct {
	cfg      *config.Config
	platform platform
	logger   *logging.Logger
}

func (a *app) query() (string, error) {
	if a.cfg.Mode == config.ModeDirect {
		b := a.platform.backend()
		a.logger.WithComponent("ime").Debug("query", "backend", b.Name())
		return b.Current()
	}

	pr, err := a.probe()
	if err != nil {
		return "", err
	}
	token, found, err := pr.Read()
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("input method indicator not found in %q", a.cfg.Probe.Container)
	}
	return token, nil
}

func (a *app) switchTo(target string) error {
	if a.cfg.Mode == config.ModeDirect {
		b := a.platform.backend()
		a.logger.WithComponent("ime").Debug("select", "backend", b.Name(), "target", target)
		return b.Select(target)
	}

	pr, err := a.probe()
	if err != nil {
		return err
	}
	policy := a.cfg.Policy()
	log := a.logger.WithComponent("switcher")
	log.Debug("switch policy",
		"max_sends", policy.MaxSends(), "max_polls", policy.MaxPolls(), "budget", policy.Budget())

	ctl := switcher.New(pr, a.platform.injector(), policy,
		switcher.WithClock(a.platform.clock),
		switcher.WithLogger(log.Logger))
	return ctl.SwitchTo(target, a.cfg.SwitchKeys)
}

func (a *app) probe() (*probe.Probe, error) {
	loc, err := a.cfg.Locator()
	if err != nil {
		return nil, err
	}
	return probe.New(a.platform.source(), loc, a.logger.WithComponent("probe").Logger), nil
}
