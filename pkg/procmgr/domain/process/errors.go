// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2024-present Datadog, Inc.

package process

import "errors"

// Construction/update-time validation errors. These never escape past the
// builder or an update use case.
var (
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidCommand      = errors.New("invalid command")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrCloneWhileRunning   = errors.New("cannot clone a process that is starting or running")
	ErrDeleteWhileRunning  = errors.New("cannot delete a process that is starting or running without force")
)
