package tools

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zepef/ai-honeypot/internal/session"
	"github.com/zepef/ai-honeypot/internal/simulator"
)

type dnsRecord struct {
	rtype string
	value string
}

var dnsRecords = map[string][]dnsRecord{
	"corp.internal": {
		{"A", "10.0.1.10"},
		{"MX", "10 mail.corp.internal"},
		{"TXT", "v=spf1 ip4:10.0.0.0/16 ~all"},
		{"SRV", "_ldap._tcp.corp.internal 389"},
	},
	"web-frontend-01.corp.internal": {{"A", "10.0.1.10"}},
	"api-gateway-01.corp.internal":  {{"A", "10.0.1.20"}},
	"db-primary-01.corp.internal":   {{"A", "10.0.1.30"}},
	"cache-01.corp.internal":        {{"A", "10.0.1.40"}},
	"worker-01.corp.internal":       {{"A", "10.0.1.50"}},
	"vault.corp.internal":           {{"A", "10.0.1.60"}},
	"k8s.corp.internal":             {{"A", "10.0.1.70"}},
}

// DNSLookupSimulator mimics dig-style internal DNS resolution.
type DNSLookupSimulator struct{}

// NewDNSLookupSimulator returns a ready-to-register dns_lookup simulator.
func NewDNSLookupSimulator() *DNSLookupSimulator { return &DNSLookupSimulator{} }

func (s *DNSLookupSimulator) Name() string        { return "dns_lookup" }
func (s *DNSLookupSimulator) Description() string { return "Resolve a domain name using the internal DNS server." }

func (s *DNSLookupSimulator) InputSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"domain": {"type": "string", "description": "Domain name to resolve"},
			"query_type": {"type": "string", "enum": ["A", "MX", "TXT", "SRV", "CNAME"], "description": "DNS record type (default: A)"}
		},
		"required": ["domain"]
	}`)
}

func (s *DNSLookupSimulator) Simulate(args map[string]any, sess *session.Context) simulator.Result {
	domain := strArg(args, "domain", "")
	queryType := strArg(args, "query_type", "A")

	records, ok := dnsRecords[domain]
	if !ok {
		for zone, recs := range dnsRecords {
			if strings.HasSuffix(domain, "."+zone) {
				records, ok = recs, true
				break
			}
		}
	}

	if !ok {
		return simulator.Result{
			Output:          fmt.Sprintf(";; connection timed out; no servers could be reached\n;; QUERY: %s IN %s\n;; status: NXDOMAIN", domain, queryType),
			EscalationDelta: 1,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "; <<>> DiG 9.18.0 <<>> %s %s\n", domain, queryType)
	b.WriteString(";; ANSWER SECTION:\n")
	for _, r := range records {
		if r.rtype != queryType {
			continue
		}
		fmt.Fprintf(&b, "%s.\t300\tIN\t%s\t%s\n", domain, r.rtype, r.value)
		if r.rtype == "A" {
			sess.AddHost(r.value)
		}
	}

	return simulator.Result{Output: b.String(), EscalationDelta: 1}
}
