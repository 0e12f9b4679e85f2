package roster_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/tidwall/gjson"

	"github.com/luma/parley/roster"
)

type sink struct {
	lines []string
	fail  error
}

func (s *sink) Send(line []byte) error {
	if s.fail != nil {
		return s.fail
	}

	s.lines = append(s.lines, string(line))
	return nil
}

var _ = Describe("roster / InmemoryRegistry", func() {
	Describe("Close()", func() {
		It("does not panic when closed twice", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(func() { registry.Close() }).NotTo(Panic())
			Expect(func() { registry.Close() }).NotTo(Panic())
		})

		It("refuses joins after close", func() {
			registry := roster.NewInmemoryRegistry(0)
			Expect(registry.Close()).To(Succeed())

			err := registry.Join("alice", &sink{})
			Expect(errors.Is(err, roster.ErrClosed)).To(BeTrue())
		})
	})

	Describe("Join()", func() {
		It("registers a member under its name", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("alice", &sink{})).To(Succeed())
			Expect(registry.Len()).To(Equal(1))
			Expect(registry.Names()).To(Equal([]string{"alice"}))
		})

		It("rejects a name that is already taken", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("alice", &sink{})).To(Succeed())

			err := registry.Join("alice", &sink{})
			Expect(errors.Is(err, roster.ErrNameTaken)).To(BeTrue())
		})

		It("rejects joins past the capacity limit", func() {
			registry := roster.NewInmemoryRegistry(2)
			defer registry.Close()

			Expect(registry.Join("alice", &sink{})).To(Succeed())
			Expect(registry.Join("bob", &sink{})).To(Succeed())

			err := registry.Join("carol", &sink{})
			Expect(errors.Is(err, roster.ErrFull)).To(BeTrue())
		})
	})

	Describe("Rename()", func() {
		It("moves a member to a new name", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("guest-1", &sink{})).To(Succeed())
			Expect(registry.Rename("guest-1", "alice")).To(Succeed())

			Expect(registry.Names()).To(Equal([]string{"alice"}))
		})

		It("rejects renaming onto a taken name", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("alice", &sink{})).To(Succeed())
			Expect(registry.Join("bob", &sink{})).To(Succeed())

			err := registry.Rename("bob", "alice")
			Expect(errors.Is(err, roster.ErrNameTaken)).To(BeTrue())
		})

		It("rejects renaming an unknown member", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			err := registry.Rename("nobody", "somebody")
			Expect(errors.Is(err, roster.ErrNotFound)).To(BeTrue())
		})

		It("keeps the original join time", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("guest-1", &sink{})).To(Succeed())

			before, err := registry.MemberInfo("guest-1")
			Expect(err).To(Succeed())

			Expect(registry.Rename("guest-1", "alice")).To(Succeed())

			after, err := registry.MemberInfo("alice")
			Expect(err).To(Succeed())
			Expect(after).To(Equal(before))
		})
	})

	Describe("Leave()", func() {
		It("removes the member", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("alice", &sink{})).To(Succeed())
			Expect(registry.Leave("alice")).To(Succeed())
			Expect(registry.Len()).To(Equal(0))
		})

		It("reports an unknown member", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			err := registry.Leave("nobody")
			Expect(errors.Is(err, roster.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Broadcast()", func() {
		It("delivers the line to every member", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			alice := &sink{}
			bob := &sink{}
			Expect(registry.Join("alice", alice)).To(Succeed())
			Expect(registry.Join("bob", bob)).To(Succeed())

			Expect(registry.Broadcast([]byte("* carol joined\n"))).To(Succeed())

			Expect(alice.lines).To(Equal([]string{"* carol joined\n"}))
			Expect(bob.lines).To(Equal([]string{"* carol joined\n"}))
		})

		It("keeps delivering when one member's sink fails", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			broken := &sink{fail: errors.New("gone")}
			bob := &sink{}
			Expect(registry.Join("alice", broken)).To(Succeed())
			Expect(registry.Join("bob", bob)).To(Succeed())

			err := registry.Broadcast([]byte("hello\n"))
			Expect(err).To(HaveOccurred())
			Expect(bob.lines).To(Equal([]string{"hello\n"}))
		})
	})

	Describe("BroadcastExcept()", func() {
		It("skips the named member", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			alice := &sink{}
			bob := &sink{}
			Expect(registry.Join("alice", alice)).To(Succeed())
			Expect(registry.Join("bob", bob)).To(Succeed())

			Expect(registry.BroadcastExcept("alice", []byte("x\n"))).To(Succeed())

			Expect(alice.lines).To(BeEmpty())
			Expect(bob.lines).To(Equal([]string{"x\n"}))
		})
	})

	Describe("SendTo()", func() {
		It("delivers only to the named member", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			alice := &sink{}
			bob := &sink{}
			Expect(registry.Join("alice", alice)).To(Succeed())
			Expect(registry.Join("bob", bob)).To(Succeed())

			Expect(registry.SendTo("bob", []byte("[alice->bob] hi\n"))).To(Succeed())

			Expect(alice.lines).To(BeEmpty())
			Expect(bob.lines).To(Equal([]string{"[alice->bob] hi\n"}))
		})

		It("reports an unknown recipient", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			err := registry.SendTo("nobody", []byte("hi\n"))
			Expect(errors.Is(err, roster.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("Snapshot()", func() {
		It("an empty registry equals {}", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			doc, err := registry.Snapshot()
			Expect(err).To(Succeed())
			Expect(string(doc)).To(Equal(`{}`))
		})

		It("records each member with a join time", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("alice", &sink{})).To(Succeed())

			doc, err := registry.Snapshot()
			Expect(err).To(Succeed())
			Expect(gjson.GetBytes(doc, "alice.joined_at").Exists()).To(BeTrue())
		})

		It("handles names that contain path syntax", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			Expect(registry.Join("mr.dot", &sink{})).To(Succeed())

			info, err := registry.MemberInfo("mr.dot")
			Expect(err).To(Succeed())
			Expect(gjson.GetBytes(info, "joined_at").Exists()).To(BeTrue())

			Expect(registry.Leave("mr.dot")).To(Succeed())

			doc, err := registry.Snapshot()
			Expect(err).To(Succeed())
			Expect(string(doc)).To(Equal(`{}`))
		})
	})

	Describe("MemberInfo()", func() {
		It("reports an unknown member", func() {
			registry := roster.NewInmemoryRegistry(0)
			defer registry.Close()

			_, err := registry.MemberInfo("nobody")
			Expect(errors.Is(err, roster.ErrNotFound)).To(BeTrue())
		})
	})
})
