package model

// Accuracy is the fraction of matching entries in yTrue and yPred.
func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 || len(yTrue) != len(yPred) {
		return 0
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue))
}

// ErrorRate is 1 - Accuracy.
func ErrorRate(yTrue, yPred []int) float64 {
	return 1 - Accuracy(yTrue, yPred)
}
