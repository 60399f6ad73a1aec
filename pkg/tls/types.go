// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package tls

// Config describes how the C10 HTTP surface should terminate TLS.
type Config struct {
	Enabled    bool
	Mode       string // "manual" or "self-signed"
	Manual     *ManualConfig
	SelfSigned *SelfSignedConfig
}

// ManualConfig points at an operator-supplied certificate and key.
type ManualConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

// SelfSignedConfig configures an in-process self-signed certificate,
// the default for a TLS-enabled arbiter with no supplied certificate.
type SelfSignedConfig struct {
	Hostnames    []string
	IPAddresses  []string
	ValidityDays int
	Organization string
}

// CertificateInfo summarizes the certificate currently in use.
type CertificateInfo struct {
	Domains         []string
	Issuer          string
	ExpiresAt       int64
	DaysUntilExpiry int32
	Valid           bool
}

// Status reports whether TLS is active and the state of its certificate.
type Status struct {
	Enabled     bool
	Mode        string
	Certificate *CertificateInfo
}
