package mock

import (
	"bufio"
	"strings"
)

const (
	junosReplyOpen  = `<rpc-reply xmlns:junos="http://xml.juniper.net/junos/9.2R2/junos">`
	junosReplyClose = `</rpc-reply>`
)

func (d *Device) serveJUNOScript(in *bufio.Scanner) {
	prompt := "vlsr@" + d.config.Hostname + "> "
	if !d.write("\r\n--- JUNOS 9.2R2.15 built 2008-10-03 19:32:58 UTC\r\n%s", prompt) {
		return
	}

	// Operational mode until the client asks for the XML API
	for {
		line, ok := d.readLine(in)
		if !ok {
			return
		}
		if d.config.Echo {
			d.write("%s\r\n", line)
		}
		if strings.TrimSpace(line) == "junoscript" {
			break
		}
		if !d.write("%s", prompt) {
			return
		}
	}

	banner := `<?xml version="1.0" encoding="us-ascii"?>` + "\n" +
		`<junoscript xmlns="http://xml.juniper.net/xnm/1.1/xnm" xmlns:junos="http://xml.juniper.net/junos/9.2R2/junos" ` +
		`os="JUNOS" release="9.2R2.15" hostname="` + d.config.Hostname + `" version="1.0">` + "\n" +
		"<!-- session start at 2026-10-19 10:00:00 UTC -->\n"
	d.write("%s", banner)

	hello, ok := d.readLine(in)
	if !ok || !strings.Contains(hello, "<junoscript") {
		return
	}
	d.echo(hello)
	d.write("<!-- user vlsr, class super-user -->\n")

	for {
		line, ok := d.readLine(in)
		if !ok {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		d.echo(line)
		if strings.Contains(line, "</junoscript>") {
			d.recordCommand("close", line)
			d.write("</junoscript>\n")
			return
		}

		op := junosOperation(line)
		d.recordCommand(op, line)

		if d.closes(op) {
			d.write("</junoscript>\n")
			return
		}
		if d.silent(op) {
			continue
		}
		if msg, failed := d.failure(op); failed {
			d.write("%s\n<xnm:error xmlns=\"http://xml.juniper.net/xnm/1.1/xnm\" xmlns:xnm=\"http://xml.juniper.net/xnm/1.1/xnm\">\n"+
				"<message>\n%s\n</message>\n</xnm:error>\n%s\n", junosReplyOpen, msg, junosReplyClose)
			continue
		}
		d.write("%s\n%s\n%s\n", junosReplyOpen, junosSuccessBody(op), junosReplyClose)
	}
}

// echo repeats an XML request line when the device echoes its input
func (d *Device) echo(line string) {
	if d.config.Echo {
		d.write("%s\n", line)
	}
}

func junosOperation(line string) string {
	switch {
	case strings.Contains(line, "<lock-configuration"):
		return "lock"
	case strings.Contains(line, "<unlock-configuration"):
		return "unlock"
	case strings.Contains(line, "<commit-configuration"):
		return "commit"
	case strings.Contains(line, "<load-configuration"):
		return "load"
	default:
		return "unknown"
	}
}

func junosSuccessBody(op string) string {
	switch op {
	case "commit":
		return "<commit-results>\n<routing-engine junos:style=\"normal\">\n<name>fpc0</name>\n<commit-success/>\n</routing-engine>\n</commit-results>"
	case "load":
		return "<load-configuration-results>\n<load-success/>\n</load-configuration-results>"
	default:
		return ""
	}
}
