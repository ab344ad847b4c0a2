package receipt

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalArchive", func() {
	var archive *LocalArchive

	BeforeEach(func() {
		var err error
		archive, err = NewLocalArchive(GinkgoT().TempDir())
		Expect(err).NotTo(HaveOccurred())
	})

	It("round-trips an image", func() {
		name, err := archive.Save("2025-09-28_玉出_abcdef012345.jpg", []byte("jpeg-bytes"))
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("2025-09-28_玉出_abcdef012345.jpg"))

		data, err := archive.Get(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal([]byte("jpeg-bytes")))
	})

	It("errors on a missing file", func() {
		_, err := archive.Get("missing.jpg")
		Expect(err).To(MatchError(ContainSubstring("reading image")))
	})

	It("deletes an archived image", func() {
		name, err := archive.Save("r.jpg", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		Expect(archive.Delete(name)).To(Succeed())

		_, err = archive.Get(name)
		Expect(err).To(HaveOccurred())
	})
})
