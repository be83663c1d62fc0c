package mock

import (
	"bufio"
	"strings"
)

type dellMode int

const (
	dellUser dellMode = iota
	dellPrivileged
	dellConfig
	dellVLANDatabase
	dellInterface
)

func (d *Device) serveDell(in *bufio.Scanner) {
	mode := dellUser
	iface := ""

	prompt := func() string {
		switch mode {
		case dellPrivileged:
			return d.config.Hostname + "#"
		case dellConfig:
			return d.config.Hostname + "(config)#"
		case dellVLANDatabase:
			return d.config.Hostname + "(config-vlan)#"
		case dellInterface:
			return d.config.Hostname + "(config-if-" + iface + ")#"
		default:
			return d.config.Hostname + ">"
		}
	}

	if !d.write("\r\n%s", prompt()) {
		return
	}

	for {
		line, ok := d.readLine(in)
		if !ok {
			return
		}
		if d.config.Echo {
			d.write("%s\r\n", line)
		}
		cmd := strings.TrimSpace(line)
		if cmd == "" {
			d.write("%s", prompt())
			continue
		}
		d.recordCommand(cmd, line)

		if d.closes(cmd) {
			return
		}
		if d.silent(cmd) {
			continue
		}
		if msg, failed := d.dellFailure(cmd); failed {
			d.write("\r\n%% %s\r\n\r\n%s", msg, prompt())
			continue
		}

		switch {
		case cmd == "enable" && mode == dellUser:
			mode = dellPrivileged
		case (cmd == "configure" || cmd == "configure terminal") && mode == dellPrivileged:
			mode = dellConfig
		case cmd == "vlan database" && mode == dellConfig:
			mode = dellVLANDatabase
		case strings.HasPrefix(cmd, "interface ethernet ") && mode == dellConfig:
			iface = strings.TrimPrefix(cmd, "interface ethernet ")
			mode = dellInterface
		case cmd == "end" && mode >= dellConfig:
			mode = dellPrivileged
		case cmd == "exit" || cmd == "quit":
			switch mode {
			case dellUser, dellPrivileged:
				return
			case dellConfig:
				mode = dellPrivileged
			default:
				mode = dellConfig
			}
		case strings.HasPrefix(cmd, "do copy running-config startup-config"), cmd == "copy running-config startup-config":
			d.write("\r\nThis operation may take a few minutes.\r\n\r\nAre you sure you want to save? (y/n) ")
			answer, ok := d.readLine(in)
			if !ok {
				return
			}
			if d.config.Echo {
				d.write("%s\r\n", answer)
			}
			d.recordCommand(strings.TrimSpace(answer), answer)
			if strings.TrimSpace(answer) == "y" {
				d.write("\r\nConfiguration Saved!\r\n")
			} else {
				d.write("\r\nConfiguration Not Saved!\r\n")
			}
		case mode == dellUser:
			d.write("%s", "\r\n% Unrecognized command\r\n")
		}
		d.write("%s", prompt())
	}
}

// dellFailure matches injected failures by command prefix
func (d *Device) dellFailure(cmd string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for prefix, msg := range d.failures {
		if strings.HasPrefix(cmd, prefix) {
			return msg, true
		}
	}
	return "", false
}
