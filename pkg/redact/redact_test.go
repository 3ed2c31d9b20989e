package redact

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Sensitive", func() {
	It("matches known sensitive key fragments", func() {
		Expect(Sensitive("password")).To(BeTrue())
		Expect(Sensitive("apiKey")).To(BeTrue())
		Expect(Sensitive("access_token")).To(BeTrue())
		Expect(Sensitive("clientSecret")).To(BeTrue())
		Expect(Sensitive("sessionKey")).To(BeTrue())
	})

	It("matches case-insensitively", func() {
		Expect(Sensitive("PASSWORD")).To(BeTrue())
		Expect(Sensitive("ApiKey")).To(BeTrue())
		Expect(Sensitive("TOKEN")).To(BeTrue())
	})

	It("leaves ordinary keys alone", func() {
		Expect(Sensitive("page")).To(BeFalse())
		Expect(Sensitive("userId")).To(BeFalse())
		Expect(Sensitive("referrer")).To(BeFalse())
	})
})

var _ = Describe("Map", func() {
	It("returns nil for a nil map", func() {
		Expect(Map(nil)).To(BeNil())
	})

	It("replaces sensitive values with the marker", func() {
		props := map[string]any{
			"page":     "/checkout",
			"apiKey":   "sk-12345",
			"password": "hunter2",
		}

		redacted := Map(props)

		Expect(redacted).To(HaveKeyWithValue("page", "/checkout"))
		Expect(redacted).To(HaveKeyWithValue("apiKey", Marker))
		Expect(redacted).To(HaveKeyWithValue("password", Marker))
	})

	It("does not mutate the input map", func() {
		props := map[string]any{"token": "abc"}

		_ = Map(props)

		Expect(props).To(HaveKeyWithValue("token", "abc"))
	})
})
