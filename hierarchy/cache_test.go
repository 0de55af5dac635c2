package hierarchy_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/kvcachesim/hierarchy"
)

var _ = Describe("BankedCache", func() {
	var c *hierarchy.BankedCache

	BeforeEach(func() {
		c = hierarchy.NewBankedCache(1, 2)
	})

	It("should report a miss for an unseen line", func() {
		Expect(c.Probe(0, 42)).To(Equal(hierarchy.Miss))
	})

	It("should admit a line with no eviction while under capacity", func() {
		evicted, didEvict, err := c.Admit(0, 1, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(didEvict).To(BeFalse())
		Expect(evicted).To(BeZero())
		Expect(c.Probe(0, 1)).To(Equal(hierarchy.Hit))
	})

	It("should evict the LRU line once full", func() {
		_, _, err := c.Admit(0, 1, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = c.Admit(0, 2, 0, nil)
		Expect(err).NotTo(HaveOccurred())

		evicted, didEvict, err := c.Admit(0, 3, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(didEvict).To(BeTrue())
		Expect(evicted).To(Equal(uint64(1)))
	})

	It("should skip a pinned victim and evict the next LRU candidate", func() {
		_, _, err := c.Admit(0, 1, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = c.Admit(0, 2, 0, nil)
		Expect(err).NotTo(HaveOccurred())

		pinned := func(key uint64) bool { return key == 1 }

		evicted, didEvict, err := c.Admit(0, 3, 0, pinned)
		Expect(err).NotTo(HaveOccurred())
		Expect(didEvict).To(BeTrue())
		Expect(evicted).To(Equal(uint64(2)))
		Expect(c.Probe(0, 1)).To(Equal(hierarchy.Hit))
	})

	It("should fail with InvariantViolation when every candidate is pinned", func() {
		_, _, err := c.Admit(0, 1, 0, nil)
		Expect(err).NotTo(HaveOccurred())
		_, _, err = c.Admit(0, 2, 0, nil)
		Expect(err).NotTo(HaveOccurred())

		allPinned := func(uint64) bool { return true }

		_, _, err = c.Admit(0, 3, 7, allPinned)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("invariant violation"))
	})

	It("should accumulate hit and miss counters independently per bank", func() {
		_, _, err := c.Admit(0, 1, 0, nil)
		Expect(err).NotTo(HaveOccurred())

		c.CountMiss(0)
		c.Touch(0, 1)
		c.Touch(0, 1)

		Expect(c.TotalMisses()).To(Equal(uint64(1)))
		Expect(c.TotalHits()).To(Equal(uint64(2)))
	})
})
