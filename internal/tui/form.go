package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rivo/tview"

	"github.com/Paintersrp/devdock/internal/config"
	"github.com/Paintersrp/devdock/internal/launch"
)

const keepCommandLabel = "Keep current command"

var errNoPreset = errors.New("choose a command preset")

// formValues is the raw content of the add/edit form. An empty Preset keeps
// the command of the record being edited.
type formValues struct {
	Name       string
	Preset     string
	Target     string
	Port       string
	WorkingDir string
	AutoStart  bool
}

// buildProcess turns form input into a validated record. base is the record
// being edited, nil when adding.
func buildProcess(v formValues, base *config.Process) (config.Process, error) {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		return config.Process{}, errors.New("name is required")
	}
	port, err := parsePort(v.Port)
	if err != nil {
		return config.Process{}, err
	}

	var cfg config.Process
	if v.Preset == "" {
		if base == nil {
			return config.Process{}, errNoPreset
		}
		cfg = base.Clone()
		cfg.Name = name
		cfg.ExpectedPort = port
	} else {
		preset, ok := launch.LookupPreset(v.Preset)
		if !ok {
			return config.Process{}, fmt.Errorf("unknown preset %q", v.Preset)
		}
		spec, err := preset.Build(v.Target, port)
		if err != nil {
			return config.Process{}, err
		}
		cfg = config.FromSpec(name, spec)
		if base != nil && base.Env != nil {
			cfg.Env = base.Clone().Env
		}
	}

	if wd := strings.TrimSpace(v.WorkingDir); v.Preset == "" || cfg.WorkingDir == "" {
		cfg.WorkingDir = wd
	}
	cfg.AutoStart = v.AutoStart

	if err := cfg.Validate(); err != nil {
		return config.Process{}, err
	}
	return cfg, nil
}

func parsePort(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %q must be a number between 1 and 65535", raw)
	}
	return port, nil
}

// presetChoices lists the dropdown entries. Editing offers to keep the
// existing command as the first choice.
func presetChoices(editing bool) (ids, labels []string, targetLabels []string) {
	if editing {
		ids = append(ids, "")
		labels = append(labels, keepCommandLabel)
		targetLabels = append(targetLabels, "Target")
	}
	for _, p := range launch.Presets() {
		ids = append(ids, p.ID)
		labels = append(labels, p.Label)
		label := p.TargetLabel
		if label == "" {
			label = "Target"
		}
		targetLabels = append(targetLabels, label)
	}
	return ids, labels, targetLabels
}

// showProcessForm opens the add form, or the edit form for original when
// base is set.
func (u *UI) showProcessForm(original string, base *config.Process) {
	editing := base != nil
	ids, labels, targetLabels := presetChoices(editing)

	current := 0
	if !editing {
		for i, id := range ids {
			if id == "manual" {
				current = i
			}
		}
	}

	name := tview.NewInputField().SetLabel("Name").SetFieldWidth(40)
	target := tview.NewInputField().SetLabel(targetLabels[current]).SetFieldWidth(40)
	port := tview.NewInputField().SetLabel("Port").SetFieldWidth(6).
		SetAcceptanceFunc(tview.InputFieldInteger)
	workdir := tview.NewInputField().SetLabel("Working dir").SetFieldWidth(40)
	autostart := tview.NewCheckbox().SetLabel("Autostart")

	if editing {
		name.SetText(base.Name)
		target.SetText(base.CommandLine())
		if base.ExpectedPort > 0 {
			port.SetText(strconv.Itoa(base.ExpectedPort))
		}
		workdir.SetText(base.WorkingDir)
		autostart.SetChecked(base.AutoStart)
	}

	preset := tview.NewDropDown().SetLabel("Command")
	preset.SetOptions(labels, func(_ string, index int) {
		if index >= 0 && index < len(targetLabels) {
			target.SetLabel(targetLabels[index])
		}
	})
	preset.SetCurrentOption(current)

	title := "Add process"
	if editing {
		title = fmt.Sprintf("Edit %s", original)
	}

	form := tview.NewForm().
		AddFormItem(name).
		AddFormItem(preset).
		AddFormItem(target).
		AddFormItem(port).
		AddFormItem(workdir).
		AddFormItem(autostart)

	form.AddButton("Save", func() {
		index, _ := preset.GetCurrentOption()
		values := formValues{
			Name:       name.GetText(),
			Target:     target.GetText(),
			Port:       port.GetText(),
			WorkingDir: workdir.GetText(),
			AutoStart:  autostart.IsChecked(),
		}
		if index >= 0 && index < len(ids) {
			values.Preset = ids[index]
		}
		cfg, err := buildProcess(values, base)
		if err != nil {
			u.showErrorModal(err.Error())
			return
		}
		u.pages.RemovePage(formPageName)
		u.focusMain()
		u.saveProcess(original, cfg)
	})
	form.AddButton("Cancel", func() {
		u.pages.RemovePage(formPageName)
		u.focusMain()
	})
	form.SetBorder(true).SetTitle(title)

	u.pages.AddPage(formPageName, centered(form, 70, 17), true, true)
	u.app.SetFocus(form)
}
