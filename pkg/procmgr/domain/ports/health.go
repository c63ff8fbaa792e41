// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package ports

import (
	"context"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// HealthProbe runs one probe attempt of the configured type and reports
// pass/fail. Drivers are selected by HealthCheckConfig.Type.
type HealthProbe interface {
	Probe(ctx context.Context, cfg process.HealthCheckConfig) error
}
