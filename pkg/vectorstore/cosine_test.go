package vectorstore

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Cosine", func() {
	It("returns 1 for identical direction", func() {
		Expect(Cosine([]float64{1, 2, 3}, []float64{2, 4, 6})).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("returns 0 for orthogonal vectors", func() {
		Expect(Cosine([]float64{1, 0}, []float64{0, 1})).To(BeNumerically("~", 0.0, 1e-9))
	})

	It("returns -1 for opposite vectors", func() {
		Expect(Cosine([]float64{1, 0}, []float64{-1, 0})).To(BeNumerically("~", -1.0, 1e-9))
	})

	It("returns 0 for mismatched dimensions", func() {
		Expect(Cosine([]float64{1, 2}, []float64{1, 2, 3})).To(BeZero())
	})

	It("returns 0 when either vector has zero norm", func() {
		Expect(Cosine([]float64{0, 0}, []float64{1, 2})).To(BeZero())
		Expect(Cosine([]float64{1, 2}, []float64{0, 0})).To(BeZero())
	})

	It("returns 0 for empty vectors", func() {
		Expect(Cosine(nil, nil)).To(BeZero())
	})
})
