package protocol_test

import (
	"errors"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/luma/parley/protocol"
)

var _ = Describe("Limits", func() {
	It("derives the wire-line maximum from the name and message maximums", func() {
		limits := protocol.Limits{NameLen: 32, MaxMsgLen: 1024}
		Expect(limits.MaxWireLine()).To(Equal(32 + 2 + 1024 + 2))
	})

	It("bounds the worst case private line", func() {
		limits := protocol.Limits{NameLen: 32, MaxMsgLen: 1024}

		// "[" + from + "->" + to + "] " + body + "\n" with both names and
		// the body at their maximums
		worst := 1 + (32 - 1) + 2 + (32 - 1) + 2 + 1024 + 1
		Expect(limits.MaxFormattedLine()).To(Equal(worst))
		Expect(limits.MaxFormattedLine()).To(BeNumerically(">", limits.MaxWireLine()))
	})

	It("rejects a name length below the minimum", func() {
		_, err := protocol.NewCodec(protocol.Limits{NameLen: 2, MaxMsgLen: 64})
		Expect(errors.Is(err, protocol.ErrBadLimits)).To(BeTrue())
	})

	It("rejects a message length that leaves no room for messages", func() {
		_, err := protocol.NewCodec(protocol.Limits{NameLen: 16, MaxMsgLen: 0})
		Expect(errors.Is(err, protocol.ErrBadLimits)).To(BeTrue())
	})

	It("accepts the defaults", func() {
		codec, err := protocol.NewCodec(protocol.DefaultLimits())
		Expect(err).To(Succeed())
		Expect(codec.Limits()).To(Equal(protocol.DefaultLimits()))
	})

	It("parses with non-default limits", func() {
		codec, err := protocol.NewCodec(protocol.Limits{NameLen: 8, MaxMsgLen: 16})
		Expect(err).To(Succeed())

		Expect(codec.ValidateName("1234567")).To(BeTrue())
		Expect(codec.ValidateName("12345678")).To(BeFalse())

		cmd, err := codec.ParseCommand([]byte("/me aaaaaaaaaaaaaaaaaaaaaaaa"))
		Expect(err).To(Succeed())
		Expect(len(cmd.Text)).To(Equal(16))
	})
})
