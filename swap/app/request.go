package app

import (
	"strconv"
	"time"

	"github.com/egaotan/solana-stateless-swap/metadata"
	"github.com/egaotan/solana-stateless-swap/offer"
	"github.com/egaotan/solana-stateless-swap/spltoken"
	"github.com/egaotan/solana-stateless-swap/store"
	"github.com/gagliardetto/solana-go"
)

const timeLayout = "2006-01-02 15:04:05"

type OfferRequest struct {
	Maker string `json:"maker" binding:"required"`
	MintA string `json:"mintA" binding:"required"`
	MintB string `json:"mintB" binding:"required"`
	SizeA uint64 `json:"sizeA,string" binding:"required"`
	SizeB uint64 `json:"sizeB,string" binding:"required"`
}

func (r *OfferRequest) Params() (offer.Params, error) {
	var p offer.Params
	var err error
	if p.Maker, err = parseKey("maker", r.Maker); err != nil {
		return p, err
	}
	if p.MintA, err = parseKey("mintA", r.MintA); err != nil {
		return p, err
	}
	if p.MintB, err = parseKey("mintB", r.MintB); err != nil {
		return p, err
	}
	p.SizeA = r.SizeA
	p.SizeB = r.SizeB
	return p, p.Validate()
}

type TradeRequest struct {
	OfferRequest
	Taker string `json:"taker" binding:"required"`
}

type ConsolidateRequest struct {
	Wallet string `json:"wallet" binding:"required"`
	Mint   string `json:"mint" binding:"required"`
}

type WatchRequest struct {
	OfferRequest
	Taker string `json:"taker"`
}

type Amount struct {
	Raw string `json:"raw"`
	Ui  string `json:"ui"`
}

func buildAmount(amount uint64, decimals uint8) *Amount {
	return &Amount{
		Raw: strconv.FormatUint(amount, 10),
		Ui:  spltoken.AmountUi(amount, decimals).String(),
	}
}

type Royalty struct {
	Creator string `json:"creator"`
	Amount  string `json:"amount"`
}

type OfferStatus struct {
	Maker              string     `json:"maker"`
	MintA              string     `json:"mintA"`
	MintB              string     `json:"mintB"`
	SizeA              *Amount    `json:"sizeA"`
	SizeB              *Amount    `json:"sizeB"`
	Authority          string     `json:"authority"`
	MakerAccount       string     `json:"maker_account"`
	MakerAccountExists bool       `json:"maker_account_exists"`
	MakerBalance       *Amount    `json:"maker_balance"`
	HasDelegate        bool       `json:"has_delegate"`
	HasValidDelegate   bool       `json:"has_valid_delegate"`
	DelegatedAmount    *Amount    `json:"delegated_amount"`
	Taker              string     `json:"taker,omitempty"`
	TakerBalance       *Amount    `json:"taker_balance,omitempty"`
	TakerSufficient    bool       `json:"taker_sufficient"`
	Royalties          []*Royalty `json:"royalties,omitempty"`
	Slot               uint64     `json:"slot"`
	Link               string     `json:"link,omitempty"`
}

func buildRoyalties(royalties []metadata.Royalty) []*Royalty {
	if len(royalties) == 0 {
		return nil
	}
	out := make([]*Royalty, 0, len(royalties))
	for _, royalty := range royalties {
		out = append(out, &Royalty{Creator: royalty.Creator.String(), Amount: royalty.Amount.String()})
	}
	return out
}

func buildOfferStatus(status *offer.Status, decimalsA uint8, decimalsB uint8) *OfferStatus {
	p := status.Params
	newStatus := &OfferStatus{
		Maker:              p.Maker.String(),
		MintA:              p.MintA.String(),
		MintB:              p.MintB.String(),
		SizeA:              buildAmount(p.SizeA, decimalsA),
		SizeB:              buildAmount(p.SizeB, decimalsB),
		Authority:          status.Authority.String(),
		MakerAccount:       status.MakerAccount.String(),
		MakerAccountExists: status.MakerAccountExists,
		MakerBalance:       buildAmount(status.MakerBalance, decimalsA),
		HasDelegate:        status.HasDelegate,
		HasValidDelegate:   status.HasValidDelegate,
		DelegatedAmount:    buildAmount(status.DelegatedAmount, decimalsA),
		TakerSufficient:    status.TakerSufficient,
		Royalties:          buildRoyalties(status.Royalties),
		Slot:               status.Height,
	}
	if !status.Taker.IsZero() {
		newStatus.Taker = status.Taker.String()
		newStatus.TakerBalance = buildAmount(status.TakerBalance, decimalsB)
	}
	return newStatus
}

type Receipt struct {
	Authority string `json:"authority,omitempty"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message"`
	Link      string `json:"link,omitempty"`
}

func buildReceipt(receipt *offer.Receipt) *Receipt {
	newReceipt := &Receipt{Message: receipt.Message}
	if !receipt.Authority.IsZero() {
		newReceipt.Authority = receipt.Authority.String()
	}
	if !receipt.Signature.IsZero() {
		newReceipt.Signature = receipt.Signature.String()
	}
	return newReceipt
}

type Watch struct {
	Id         string       `json:"id"`
	Generation uint64       `json:"generation"`
	Status     *OfferStatus `json:"status,omitempty"`
	Error      string       `json:"error,omitempty"`
	Updated    string       `json:"updated,omitempty"`
}

type OfferRecord struct {
	Maker     string `json:"maker"`
	MintA     string `json:"mintA"`
	MintB     string `json:"mintB"`
	SizeA     string `json:"sizeA"`
	SizeB     string `json:"sizeB"`
	Authority string `json:"authority"`
	Action    string `json:"action"`
	Signature string `json:"signature"`
	Time      string `json:"time"`
}

type TradeRecord struct {
	Maker       string `json:"maker"`
	Taker       string `json:"taker"`
	MintA       string `json:"mintA"`
	MintB       string `json:"mintB"`
	SizeA       string `json:"sizeA"`
	SizeB       string `json:"sizeB"`
	CreatorFees bool   `json:"creator_fees"`
	Signature   string `json:"signature"`
	Time        string `json:"time"`
}

type History struct {
	Offers []*OfferRecord `json:"offers"`
	Trades []*TradeRecord `json:"trades"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func buildHistory(history *store.History) *History {
	newHistory := &History{
		Offers: make([]*OfferRecord, 0, len(history.Offers)),
		Trades: make([]*TradeRecord, 0, len(history.Trades)),
	}
	for _, record := range history.Offers {
		newHistory.Offers = append(newHistory.Offers, &OfferRecord{
			Maker:     record.Maker,
			MintA:     record.MintA,
			MintB:     record.MintB,
			SizeA:     strconv.FormatUint(record.SizeA, 10),
			SizeB:     strconv.FormatUint(record.SizeB, 10),
			Authority: record.Authority,
			Action:    record.Action,
			Signature: record.Signature,
			Time:      formatTime(record.CreatedAt),
		})
	}
	for _, record := range history.Trades {
		newHistory.Trades = append(newHistory.Trades, &TradeRecord{
			Maker:       record.Maker,
			Taker:       record.Taker,
			MintA:       record.MintA,
			MintB:       record.MintB,
			SizeA:       strconv.FormatUint(record.SizeA, 10),
			SizeB:       strconv.FormatUint(record.SizeB, 10),
			CreatorFees: record.CreatorFees,
			Signature:   record.Signature,
			Time:        formatTime(record.CreatedAt),
		})
	}
	return newHistory
}

func parseKey(name string, value string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, &paramError{name: name, err: err}
	}
	return key, nil
}

type paramError struct {
	name string
	err  error
}

func (e *paramError) Error() string {
	return "invalid " + e.name + ": " + e.err.Error()
}

func (e *paramError) Unwrap() error {
	return offer.ErrInvalidParams
}
