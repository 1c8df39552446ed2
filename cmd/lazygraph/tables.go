// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/gomlx/lazygraph/pkg/core/tensors"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == lgtable.HeaderRow {
				s = headerRowStyle
				return
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// printResult prints up to maxMatrices matrices of the result as tables.
func printResult(name string, result *tensors.Tensor, maxMatrices int) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %s", name, result.Shape())))
	if !result.Shape().IsBatchMatrix() {
		fmt.Println(matrixTable(result).Render())
		return
	}
	for b := range min(result.BatchSize(), maxMatrices) {
		fmt.Printf("  batch #%d:\n", b)
		fmt.Println(matrixTable(result.Slice(b)).Render())
	}
	if result.BatchSize() > maxMatrices {
		fmt.Printf("  ... %d more matrices\n", result.BatchSize()-maxMatrices)
	}
}

// matrixTable renders a matrix with a header with the column indices.
func matrixTable(matrix *tensors.Tensor) *lgtable.Table {
	table := newPlainTable(true)
	headers := make([]string, matrix.Cols()+1)
	headers[0] = "row"
	for col := range matrix.Cols() {
		headers[col+1] = strconv.Itoa(col)
	}
	table.Headers(headers...)
	for row := range matrix.Rows() {
		cells := make([]string, matrix.Cols()+1)
		cells[0] = strconv.Itoa(row)
		for col := range matrix.Cols() {
			cells[col+1] = strconv.FormatFloat(matrix.At(row, col), 'g', 5, 64)
		}
		table.Row(cells...)
	}
	return table
}
