package standard

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/xerrors"
)

// ExpiryWarningDays is the window in which a certificate is flagged as expiring.
const ExpiryWarningDays = 30

// CertificateMonitor inspects the PEM files the submission transport is
// configured with (CA roots and the mTLS client certificate).
type CertificateMonitor struct {
	clock quartz.Clock
	files map[string]string // purpose -> path

	mu        sync.RWMutex
	certs     []CertificateInfo
	lastScan  time.Time
	scanError error
}

// CertificateInfo holds parsed certificate metadata.
type CertificateInfo struct {
	Path            string    `json:"path"`
	Purpose         string    `json:"purpose"` // "ca" or "client"
	Subject         string    `json:"subject"`
	Issuer          string    `json:"issuer"`
	ValidFrom       time.Time `json:"valid_from"`
	ValidUntil      time.Time `json:"valid_until"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	SANs            []string  `json:"sans"`
	IsExpired       bool      `json:"is_expired"`
	ExpiryWarning   bool      `json:"expiry_warning"`
}

// NewCertificateMonitor watches caPath and certPath; empty paths are ignored.
func NewCertificateMonitor(clock quartz.Clock, caPath, certPath string) *CertificateMonitor {
	if clock == nil {
		clock = quartz.NewReal()
	}
	files := make(map[string]string)
	if caPath != "" {
		files["ca"] = caPath
	}
	if certPath != "" {
		files["client"] = certPath
	}
	return &CertificateMonitor{clock: clock, files: files}
}

// Scan re-reads every configured file. Files that fail to parse are skipped
// and the last failure is returned.
func (cm *CertificateMonitor) Scan() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.clock.Now()
	cm.certs = cm.certs[:0]
	cm.lastScan = now
	cm.scanError = nil

	for purpose, path := range cm.files {
		info, err := parseCertificateFile(path, now)
		if err != nil {
			cm.scanError = xerrors.Errorf("%s certificate %s: %w", purpose, path, err)
			continue
		}
		info.Purpose = purpose
		cm.certs = append(cm.certs, info)
	}
	sort.Slice(cm.certs, func(i, j int) bool { return cm.certs[i].Purpose < cm.certs[j].Purpose })
	return cm.scanError
}

// Certificates returns the result of the last scan.
func (cm *CertificateMonitor) Certificates() []CertificateInfo {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make([]CertificateInfo, len(cm.certs))
	copy(out, cm.certs)
	return out
}

// Expiring returns certificates that expire within withinDays but have not yet.
func (cm *CertificateMonitor) Expiring(withinDays int) []CertificateInfo {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var expiring []CertificateInfo
	for _, cert := range cm.certs {
		if cert.DaysUntilExpiry <= withinDays && !cert.IsExpired {
			expiring = append(expiring, cert)
		}
	}
	return expiring
}

// Expired returns certificates past their NotAfter.
func (cm *CertificateMonitor) Expired() []CertificateInfo {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	var expired []CertificateInfo
	for _, cert := range cm.certs {
		if cert.IsExpired {
			expired = append(expired, cert)
		}
	}
	return expired
}

func (cm *CertificateMonitor) GetData() interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data := map[string]interface{}{
		"certificates": cm.certs,
		"last_scan":    cm.lastScan.Format(time.RFC3339),
	}
	if cm.scanError != nil {
		data["scan_error"] = cm.scanError.Error()
	}
	return data
}

// parseCertificateFile reads the first PEM block of path.
func parseCertificateFile(path string, now time.Time) (CertificateInfo, error) {
	certPEM, err := os.ReadFile(path)
	if err != nil {
		return CertificateInfo{}, xerrors.Errorf("read: %w", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil {
		return CertificateInfo{}, xerrors.New("no PEM block")
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return CertificateInfo{}, xerrors.Errorf("parse: %w", err)
	}

	daysUntilExpiry := int(cert.NotAfter.Sub(now).Hours() / 24)
	isExpired := now.After(cert.NotAfter)

	var sans []string
	for _, dns := range cert.DNSNames {
		sans = append(sans, fmt.Sprintf("DNS:%s", dns))
	}
	for _, ip := range cert.IPAddresses {
		sans = append(sans, fmt.Sprintf("IP:%s", ip.String()))
	}

	return CertificateInfo{
		Path:            path,
		Subject:         cert.Subject.String(),
		Issuer:          cert.Issuer.String(),
		ValidFrom:       cert.NotBefore,
		ValidUntil:      cert.NotAfter,
		DaysUntilExpiry: daysUntilExpiry,
		SANs:            sans,
		IsExpired:       isExpired,
		ExpiryWarning:   daysUntilExpiry <= ExpiryWarningDays && !isExpired,
	}, nil
}
