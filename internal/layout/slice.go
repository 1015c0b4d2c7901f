package layout

// Slice is the horizontal placement of an event within a day column, in percent.
type Slice struct {
	WidthPercent float64 `json:"widthPercent"`
	LeftPercent  float64 `json:"leftPercent"`
}

// HorizontalSlice returns the slice for the index-th member of a group of groupSize
// events shown side by side. Members tile the column left to right in group order.
// Out of range arguments yield a zero Slice.
func HorizontalSlice(groupSize, index int) Slice {
	if groupSize <= 0 || index < 0 || index >= groupSize {
		return Slice{}
	}
	width := 100 / float64(groupSize)
	return Slice{
		WidthPercent: width,
		LeftPercent:  width * float64(index),
	}
}
