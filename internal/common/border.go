package common

// Reflect101 maps an out-of-range index back into [0, n) as
// gfedcb|abcdefgh|gfedcba, the border mode the image filters share.
func Reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}
