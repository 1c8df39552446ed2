// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

// Device where a tensor's storage lives, and where the kernels reading or writing it run.
//
// Only the CPU is implemented: the Go slices backing a Tensor are directly addressable.
type Device int

//go:generate go tool enumer -type=Device -trimprefix=Device -output=gen_device_enumer.go device.go

const (
	DeviceInvalid Device = iota
	DeviceCPU
)
