// Copyright ©2024 The nnx Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nnx is a register-level driver for the NE16, Neureka and
// Neureka v2 neural network accelerators found in PULP clusters.
//
// The driver turns a logical convolution (tensor shapes, bit widths,
// quantization and normalization parameters, stride and padding) into the
// register image the accelerator expects, pushes it through the two-slot
// hardware job queue and tracks completion through the wrapping 8-bit job
// id the device exposes.
//
// The root package holds the shared error types and platform constants.
// The work is split across sub-packages:
//   - profile: per-generation constants and the control word bit layout
//   - subtile: tile count, remainder and 16-bit pair arithmetic
//   - task: the descriptor builder and register image
//   - hwpe: the device register interface, simulator and MMIO backends
//   - queue: dispatch and resolve over the hardware job queue
//   - stride: 2x2 strided convolution split into native jobs
//   - bsp: cluster bring-up (clock gating, bus priority, max stall)
//   - trace: simulator log level registers
//   - weight: weight memory layout encoders
//   - ffu: fixed-function unit façade executing convolution workloads
//
// A typical single job on real hardware:
//
//	d, err := task.Build(profile.NEUREKA, cfg)
//	...
//	q := queue.New(hwpe.New(dev), waiter)
//	q.DispatchBlocking(d)
//	q.ResolveWait(d)
package nnx
