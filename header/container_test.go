package header_test

import (
	"strings"

	"github.com/nabbar/connengine/header"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("[TC-HDR] Container", func() {
	Context("case-insensitive lookup", func() {
		It("[TC-HDR-001] finds a value regardless of the lookup casing", func() {
			c := header.New()
			c.Set("Content-Type", []string{"text/plain"})

			Expect(c.GetFirst("Content-Type")).To(Equal(c.GetFirst("content-type")))
			Expect(c.GetFirst("content-type")).To(Equal(c.GetFirst("CONTENT-TYPE")))
			Expect(c.GetFirst("CONTENT-TYPE")).To(Equal("text/plain"))
		})

		It("[TC-HDR-002] preserves the casing of the first writer", func() {
			c := header.New()
			c.Set("X-Custom-Header", []string{"v1"})
			c.Append("x-custom-header", "v2")

			names := map[string]bool{}
			c.Each(func(name string, _ []string) bool {
				names[name] = true
				return true
			})
			Expect(names).To(HaveKey("X-Custom-Header"))
			Expect(names).NotTo(HaveKey("x-custom-header"))
		})
	})

	Context("merge rules", func() {
		It("[TC-HDR-003] merges a mergeable header into the first value", func() {
			c := header.New()
			c.Set("Accept", []string{"text/html"})
			c.Append("Accept", "application/json", "*/*")

			Expect(c.GetFirst("Accept")).To(Equal("text/html, application/json, */*"))
			Expect(c.Get("Accept")).To(HaveLen(1))
		})

		It("[TC-HDR-004] keeps Set-Cookie values as distinct list entries", func() {
			c := header.New()
			c.Append("Set-Cookie", "a=1")
			c.Append("Set-Cookie", "b=2")

			Expect(c.Get("Set-Cookie")).To(Equal([]string{"a=1", "b=2"}))
		})

		It("[TC-HDR-005] Remove drops both the value and the lookup index", func() {
			c := header.New()
			c.Set("X-Trace", []string{"1"})
			c.Remove("x-trace")

			Expect(c.Has("X-Trace")).To(BeFalse())
			Expect(c.Get("X-Trace")).To(BeNil())
		})
	})

	Context("wire serialization", func() {
		It("[TC-HDR-006] preserves insertion order and multi-value lists", func() {
			c := header.New()
			c.Set("Host", []string{"example.org"})
			c.Append("Set-Cookie", "a=1")
			c.Append("Set-Cookie", "b=2")
			c.Set("Content-Length", []string{"2"})

			var sb strings.Builder
			Expect(c.WriteTo(&sb)).To(Succeed())

			Expect(sb.String()).To(Equal(
				"Host: example.org\r\n" +
					"Set-Cookie: a=1\r\n" +
					"Set-Cookie: b=2\r\n" +
					"Content-Length: 2\r\n",
			))
		})
	})
})
