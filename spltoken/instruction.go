package spltoken

import (
	"encoding/binary"

	"github.com/egaotan/solana-stateless-swap/program"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
)

const (
	instructionTransfer = 3
	instructionApprove  = 4
	instructionRevoke   = 5
	instructionClose    = 9
)

// AssociatedAddress is the deterministic token account of owner for mint.
func AssociatedAddress(owner solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	address, _, err := solana.FindProgramAddress([][]byte{
		owner.Bytes(),
		program.Token.Bytes(),
		mint.Bytes(),
	}, program.AssociatedToken)
	return address, err
}

// InstructionCreateAssociated creates owner's associated account for mint, paid by payer.
func InstructionCreateAssociated(payer solana.PublicKey, owner solana.PublicKey, mint solana.PublicKey) (solana.Instruction, error) {
	in, err := associatedtokenaccount.NewCreateInstruction(payer, owner, mint).ValidateAndBuild()
	if err != nil {
		return nil, err
	}
	return in, nil
}

func amountInstruction(command byte, amount uint64, accounts []*solana.AccountMeta) solana.Instruction {
	data := make([]byte, 9)
	data[0] = command
	binary.LittleEndian.PutUint64(data[1:], amount)
	return &program.Instruction{
		IsAccounts:  accounts,
		IsData:      data,
		IsProgramID: program.Token,
	}
}

// InstructionApprove lets delegate move up to amount out of source.
func InstructionApprove(source solana.PublicKey, delegate solana.PublicKey, owner solana.PublicKey, amount uint64) solana.Instruction {
	return amountInstruction(instructionApprove, amount, []*solana.AccountMeta{
		program.Writable(source),
		program.ReadOnly(delegate),
		program.Signer(owner),
	})
}

func InstructionRevoke(source solana.PublicKey, owner solana.PublicKey) solana.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			program.Writable(source),
			program.Signer(owner),
		},
		IsData:      []byte{instructionRevoke},
		IsProgramID: program.Token,
	}
}

func InstructionTransfer(source solana.PublicKey, destination solana.PublicKey, owner solana.PublicKey, amount uint64) solana.Instruction {
	return amountInstruction(instructionTransfer, amount, []*solana.AccountMeta{
		program.Writable(source),
		program.Writable(destination),
		program.Signer(owner),
	})
}

func InstructionClose(account solana.PublicKey, destination solana.PublicKey, owner solana.PublicKey) solana.Instruction {
	return &program.Instruction{
		IsAccounts: []*solana.AccountMeta{
			program.Writable(account),
			program.Writable(destination),
			program.Signer(owner),
		},
		IsData:      []byte{instructionClose},
		IsProgramID: program.Token,
	}
}
