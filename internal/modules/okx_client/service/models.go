package service

// Raw OKX payloads. Numbers arrive as strings.

type rawTicker struct {
	InstID string `json:"instId"`
	Last   string `json:"last"`
	Ts     string `json:"ts"`
}

type rawInstrument struct {
	InstID    string `json:"instId"`
	InstType  string `json:"instType"`
	TickSz    string `json:"tickSz"`
	LotSz     string `json:"lotSz"`
	MinSz     string `json:"minSz"`
	CtVal     string `json:"ctVal"`
	CtMult    string `json:"ctMult"`
	CtType    string `json:"ctType"`
	SettleCcy string `json:"settleCcy"`
	State     string `json:"state"`
}

type rawOrderAck struct {
	OrdID   string `json:"ordId"`
	ClOrdID string `json:"clOrdId"`
	SCode   string `json:"sCode"`
	SMsg    string `json:"sMsg"`
}

type rawOrder struct {
	InstID    string `json:"instId"`
	OrdID     string `json:"ordId"`
	ClOrdID   string `json:"clOrdId"`
	Side      string `json:"side"`
	PosSide   string `json:"posSide"`
	OrdType   string `json:"ordType"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	AccFillSz string `json:"accFillSz"`
	AvgPx     string `json:"avgPx"`
	State     string `json:"state"`
}

type rawPosition struct {
	InstID  string `json:"instId"`
	PosSide string `json:"posSide"`
	Pos     string `json:"pos"`
	AvgPx   string `json:"avgPx"`
	Lever   string `json:"lever"`
	MgnMode string `json:"mgnMode"`
}

type rawBalance struct {
	TotalEq string `json:"totalEq"`
	Details []struct {
		Ccy      string `json:"ccy"`
		Eq       string `json:"eq"`
		AvailBal string `json:"availBal"`
	} `json:"details"`
}

type rawLeverage struct {
	InstID  string `json:"instId"`
	Lever   string `json:"lever"`
	MgnMode string `json:"mgnMode"`
}

type attachAlgo struct {
	TpTriggerPx string `json:"tpTriggerPx,omitempty"`
	TpOrdPx     string `json:"tpOrdPx,omitempty"`
	SlTriggerPx string `json:"slTriggerPx,omitempty"`
	SlOrdPx     string `json:"slOrdPx,omitempty"`
}

type placeOrderBody struct {
	InstID         string       `json:"instId"`
	TdMode         string       `json:"tdMode"`
	Side           string       `json:"side"`
	PosSide        string       `json:"posSide,omitempty"`
	OrdType        string       `json:"ordType"`
	Sz             string       `json:"sz"`
	Px             string       `json:"px,omitempty"`
	ClOrdID        string       `json:"clOrdId,omitempty"`
	ReduceOnly     bool         `json:"reduceOnly,omitempty"`
	AttachAlgoOrds []attachAlgo `json:"attachAlgoOrds,omitempty"`
}
