package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/simulator"
)

type nmapPort struct {
	port    int
	state   string
	service string
	version string
}

var nmapDefaultPorts = []nmapPort{
	{22, "open", "ssh", "OpenSSH 8.9p1 Ubuntu"},
	{80, "open", "http", "nginx/1.24.0"},
	{443, "open", "https", "nginx/1.24.0"},
	{5432, "open", "postgresql", "PostgreSQL 15.4"},
	{6379, "filtered", "redis", ""},
	{8080, "open", "http-proxy", "Gunicorn 21.2.0"},
}

var nmapInternalHosts = []string{"10.0.1.10", "10.0.1.20", "10.0.1.30"}

// NmapSimulator mimics nmap port-scan output against internal hosts.
type NmapSimulator struct{}

// NewNmapSimulator returns a ready-to-register nmap_scan simulator.
func NewNmapSimulator() *NmapSimulator { return &NmapSimulator{} }

func (s *NmapSimulator) Name() string        { return "nmap_scan" }
func (s *NmapSimulator) Description() string { return "Scan a target host or network range for open ports and running services." }

func (s *NmapSimulator) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"target": {"type": "string", "description": "Target IP address, hostname, or CIDR range to scan"},
			"ports": {"type": "string", "description": "Port range to scan (e.g., '1-1000', '22,80,443'). Default: common ports"},
			"scan_type": {"type": "string", "enum": ["quick", "full", "service"], "description": "Scan type: quick (top 100), full (all ports), service (version detection)"}
		},
		"required": ["target"]
	}`)
}

func (s *NmapSimulator) Simulate(args map[string]any, sess *session.Context) simulator.Result {
	target := strArg(args, "target", "127.0.0.1")
	scanType := strArg(args, "scan_type", "quick")

	var hosts []string
	if strings.Contains(target, "/") {
		hosts = nmapInternalHosts
	} else {
		hosts = []string{target}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Starting Nmap 7.94 ( https://nmap.org ) at 2025-01-15 14:32 UTC\n")
	fmt.Fprintf(&b, "Nmap scan report for %s\n", target)

	for _, host := range hosts {
		sess.AddHost(host)
		fmt.Fprintf(&b, "\nHost: %s\n", host)
		b.WriteString("PORT      STATE    SERVICE         VERSION\n")

		ports := nmapDefaultPorts
		if scanType == "quick" {
			ports = nmapDefaultPorts[:4]
		}
		for _, p := range ports {
			sess.AddPort(host, p.port, p.service)
			version := ""
			if scanType == "service" {
				version = p.version
			}
			fmt.Fprintf(&b, "%-10s%-9s%-16s%s\n", fmt.Sprintf("%d/tcp", p.port), p.state, p.service, version)
		}
	}

	plural := ""
	if len(hosts) > 1 {
		plural = "es"
	}
	fmt.Fprintf(&b, "\nNmap done: %d IP address%s (%d host up) scanned in 2.34 seconds", len(hosts), plural, len(hosts))

	return simulator.Result{Output: b.String(), EscalationDelta: 1}
}
