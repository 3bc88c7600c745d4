package model

import "time"

// QuarterlyData は四半期ごとの事業アップデートを表す。
// 四半期ラベル（例: "Q4 2024"）ごとに1レコードのみ存在する。
type QuarterlyData struct {
	ID           string       `json:"id"`
	Quarter      string       `json:"quarter"`
	Metrics      Metrics      `json:"metrics"`
	Financial    Financial    `json:"financial"`
	Highlights   Highlights   `json:"highlights"`
	Documents    []Document   `json:"documents"`
	CallToAction CallToAction `json:"callToAction"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	IsPublished  bool         `json:"isPublished"`
}

// Metrics は事業KPIを表す。金額は表示用の文字列として扱う。
type Metrics struct {
	SwapVolume                string `json:"swapVolume"`
	CardSpending              string `json:"cardSpending"`
	WeeklyTransactingAccounts int    `json:"weeklyTransactingAccounts"`
}

// Financial は財務サマリーを表す。
type Financial struct {
	Cash           string `json:"cash"`
	MonthlyBurn    string `json:"monthlyBurn"`
	RunwayMonths   int    `json:"runwayMonths"`
	MonthlyRevenue string `json:"monthlyRevenue"`
	Headcount      int    `json:"headcount"`
}

// Highlights はCEOアップデートと順序付きリストを保持する。
// リストの並び順はdisplay_orderとして永続化される。
type Highlights struct {
	CEOUpdate             string   `json:"ceoUpdate"`
	Achievements          []string `json:"achievements"`
	Challenges            []string `json:"challenges"`
	NextQuarterMilestones []string `json:"nextQuarterMilestones"`
}

// Document は四半期に添付された資料を表す。
type Document struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
	Date string `json:"date"` // YYYY-MM-DD
	URL  string `json:"url,omitempty"`
}

// CallToAction は投資家向けの行動喚起を表す。
type CallToAction struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ActionText  string `json:"actionText"`
}
