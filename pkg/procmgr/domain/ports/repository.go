// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package ports

import (
	"errors"

	"github.com/DataDog/agent-process-manager/pkg/procmgr/domain/process"
)

// ErrProcessNotFound is a benign lookup miss; the supervisor treats it as
// "nothing to do", never as fatal.
var ErrProcessNotFound = errors.New("process not found")

// Repository is the persistence port. Implementations must serialise
// per-id writes.
type Repository interface {
	FindByID(id process.ID) (*process.Process, error)
	FindByName(name string) (*process.Process, error)
	FindAll() ([]*process.Process, error)
	Save(p *process.Process) error
	// Delete requires state not in {Running, Starting} unless force is
	// true, in which case the caller must have already stopped it.
	Delete(id process.ID, force bool) error
}
