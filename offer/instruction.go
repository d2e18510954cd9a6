package offer

import (
	"bytes"

	"github.com/egaotan/solana-stateless-swap/program"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const instructionAcceptOffer uint8 = 0

// AcceptOfferArgs is the payload of the accept offer instruction. The receiving
// program reads it as u8 | u8 | u64 | u64 | u8.
type AcceptOfferArgs struct {
	Instruction uint8
	HasMetadata bool
	MakerSize   uint64
	TakerSize   uint64
	BumpSeed    uint8
}

func (args *AcceptOfferArgs) Encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// AcceptOfferAccounts are the accounts a trade touches. MakerDst and TakerSrc are the
// wallets themselves when mint B is native.
type AcceptOfferAccounts struct {
	MakerWallet       solana.PublicKey
	TakerWallet       solana.PublicKey
	MakerSrc          solana.PublicKey
	MakerDst          solana.PublicKey
	TakerSrc          solana.PublicKey
	TakerDst          solana.PublicKey
	MakerSrcMint      solana.PublicKey
	TakerSrcMint      solana.PublicKey
	TransferAuthority solana.PublicKey
	// Additional is the metadata account followed by the creator accounts.
	Additional []*solana.AccountMeta
}

func NewAcceptOfferInstruction(programID solana.PublicKey, accounts *AcceptOfferAccounts, args AcceptOfferArgs) (solana.Instruction, error) {
	args.Instruction = instructionAcceptOffer
	args.HasMetadata = len(accounts.Additional) > 0
	data, err := args.Encode()
	if err != nil {
		return nil, err
	}
	keys := []*solana.AccountMeta{
		program.ReadOnly(accounts.MakerWallet),
		program.Signer(accounts.TakerWallet),
		program.Writable(accounts.MakerSrc),
		program.Writable(accounts.MakerDst),
		program.Writable(accounts.TakerSrc),
		program.Writable(accounts.TakerDst),
		program.ReadOnly(accounts.MakerSrcMint),
		program.ReadOnly(accounts.TakerSrcMint),
		program.ReadOnly(accounts.TransferAuthority),
		program.ReadOnly(program.Token),
	}
	if program.IsNative(accounts.TakerSrcMint) {
		keys = append(keys, program.ReadOnly(program.System))
	}
	keys = append(keys, accounts.Additional...)
	return &program.Instruction{
		IsAccounts:  keys,
		IsData:      data,
		IsProgramID: programID,
	}, nil
}
