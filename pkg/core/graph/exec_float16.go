// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import "github.com/x448/float16"

// Float16 kernels convert their inputs to float32, compute (and accumulate) in float32, and convert
// the results back.

func float16ToFloat32(src []float16.Float16) []float32 {
	dst := make([]float32, len(src))
	for ii, v := range src {
		dst[ii] = v.Float32()
	}
	return dst
}

func storeFloat32AsFloat16(dst []float16.Float16, src []float32) {
	for ii, v := range src {
		dst[ii] = float16.Fromfloat32(v)
	}
}
