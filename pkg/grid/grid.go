// Package grid maps linear indices onto row-major grids.
package grid

// GetGridCoords maps a linear index onto a row-major grid with cols columns.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Extent returns how many columns and rows n cells occupy on a grid with
// cols columns.
func Extent(n, cols int) (usedCols, rows int) {
	if n <= 0 {
		return 0, 0
	}
	return min(n, cols), (n + cols - 1) / cols
}
