package expression

// Dictionary maps a variable name (category prefix included) to the remote
// field key of a report record. It is closed: names not listed are unknown.
type Dictionary map[string]string

// Lookup returns the field key for name.
func (d Dictionary) Lookup(name string) (string, bool) {
	key, ok := d[name]
	return key, ok
}

// Merge returns a new dictionary holding the entries of d and others.
func (d Dictionary) Merge(others ...Dictionary) Dictionary {
	out := make(Dictionary, len(d))
	for k, v := range d {
		out[k] = v
	}
	for _, o := range others {
		for k, v := range o {
			out[k] = v
		}
	}
	return out
}

var leadingIndicatorItems = Dictionary{
	// per share
	"jbmgsy-基本每股收益[元]":   "EPSJB",
	"kfmgsy-扣非每股收益[元]":   "EPSKCJB",
	"xsmgsy-稀释每股收益[元]":   "EPSXS",
	"mgjzc-每股净资产[元]":     "BPS",
	"mggjj-每股公积金[元]":     "MGZBGJ",
	"mgwfplr-每股未分配利润[元]": "MGWFPLR",
	"mgjyxjl-每股经营现金流[元]": "MGJYXJJE",

	// growth
	"yyzsr-营业总收入[元]":             "TOTALOPERATEREVE",
	"mlr-毛利润[元]":                 "MLR",
	"gsjlr-归属净利润[元]":             "PARENTNETPROFIT",
	"kfjlr-扣非净利润[元]":             "KCFJCXSYJLR",
	"yyzsrtbzz-营业总收入同比增长[%]":     "TOTALOPERATEREVETZ",
	"gsjlrtbzz-归属净利润同比增长[%]":     "PARENTNETPROFITTZ",
	"kfjlrtbzz-扣非净利润同比增长[%]":     "KCFJCXSYJLRTZ",
	"yyzsrgdhbzz-营业总收入滚动环比增长[%]": "YYZSRGDHBZC",
	"gsjlrgdhbzz-归属净利润滚动环比增长[%]": "NETPROFITRPHBZC",
	"kfjlrgdhbzz-扣非净利润滚动环比增长[%]": "KFJLRGDHBZC",

	// profitability
	"jzcsyl[jq]-净资产收益率[加权][%]":       "ROEJQ",
	"jzcsyl[kf/jq]-净资产收益率[扣非/加权][%]": "ROEKCJQ",
	"zzcsly[jq]-总资产收益率[加权][%]":       "ZZCJLL",
	"mll-毛利率[%]": "XSMLL",
	"jll-净利率[%]": "XSJLL",

	// earnings quality
	"yszk/yyzsr-预收账款/营业总收入":     "YSZKYYSR",
	"xsjxjl/yysr-销售净现金流/营业总收入":  "XSJXLYYSR",
	"jyjxjl/yyzsr-经营净现金流/营业总收入": "JYXJLYYSR",
	"sjsl-实际税率[%]":              "TAXRATE",

	// financial risk
	"ldbl-流动比率":      "LD",
	"sdbl-速动比率":      "SD",
	"xjllbl-现金流量比率":  "XJLLB",
	"zcfzl-资产负债率[%]": "ZCFZL",
	"qyxs-权益系数":      "QYCS",
	"cqbl-产权比率":      "CQBL",

	// operating capability
	"zzczzts-总资产周转天数[天]":   "ZZCZZTS",
	"chzzts-存货周转天数[天]":     "CHZZTS",
	"yszkzzts-应收账款周转天数[天]": "YSZKZZTS",
	"zzczzl-总资产周转率[次]":     "TOAZZL",
	"chzzl-存货周转率[次]":       "CHZZL",
	"yszkzzl-应收账款周转率[次]":   "YSZKZZL",
}

var accountItems = Dictionary{
	// income statement
	"l-yyzsr-营业总收入":         "TOTAL_OPERATE_INCOME",
	"l-yysr-营业收入":           "OPERATE_INCOME",
	"l-yyzcb-营业总成本":         "TOTAL_OPERATE_COST",
	"l-yycb-营业成本":           "OPERATE_COST",
	"l-sjjfj-税金及附加":         "OPERATE_TAX_ADD",
	"l-xsfy-销售费用":           "SALE_EXPENSE",
	"l-glfy-管理费用":           "MANAGE_EXPENSE",
	"l-yffy-研发费用":           "RESEARCH_EXPENSE",
	"l-cwfy-财务费用":           "FINANCE_EXPENSE",
	"l-lxzc-利息支出":           "FE_INTEREST_EXPENSE",
	"l-tzsy-投资收益":           "INVEST_INCOME",
	"l-yylr-营业利润":           "OPERATE_PROFIT",
	"l-lrze-利润总额":           "TOTAL_PROFIT",
	"l-sdsfy-所得税费用":         "INCOME_TAX",
	"l-jlr-净利润":             "NETPROFIT",
	"l-gsjlr-归属于母公司股东的净利润":  "PARENT_NETPROFIT",
	"l-kfjlr-扣除非经常性损益后的净利润": "DEDUCT_PARENT_NETPROFIT",
	"l-jbmgsy-基本每股收益":       "BASIC_EPS",

	// balance sheet
	"z-hbzj-货币资金":              "MONETARYFUNDS",
	"z-jyxjrzc-交易性金融资产":        "TRADE_FINASSET_NOTFVTPL",
	"z-yspj-应收票据":              "NOTE_RECE",
	"z-yszk-应收账款":              "ACCOUNTS_RECE",
	"z-yfkx-预付款项":              "PREPAYMENT",
	"z-ch-存货":                  "INVENTORY",
	"z-ldzchj-流动资产合计":          "TOTAL_CURRENT_ASSETS",
	"z-gdzc-固定资产":              "FIXED_ASSET",
	"z-zjgc-在建工程":              "CIP",
	"z-wxzc-无形资产":              "INTANGIBLE_ASSET",
	"z-sy-商誉":                  "GOODWILL",
	"z-zczj-资产总计":              "TOTAL_ASSETS",
	"z-dqjk-短期借款":              "SHORT_LOAN",
	"z-yfpj-应付票据":              "NOTE_PAYABLE",
	"z-yfzk-应付账款":              "ACCOUNTS_PAYABLE",
	"z-yskx-预收款项":              "ADVANCE_RECEIVABLES",
	"z-htfz-合同负债":              "CONTRACT_LIAB",
	"z-ldfzhj-流动负债合计":          "TOTAL_CURRENT_LIAB",
	"z-cqjk-长期借款":              "LONG_LOAN",
	"z-yfzq-应付债券":              "BOND_PAYABLE",
	"z-fzhj-负债合计":              "TOTAL_LIABILITIES",
	"z-gsmgsyzqy-归属于母公司股东权益合计": "TOTAL_PARENT_EQUITY",
	"z-syzqyhj-所有者权益合计":        "TOTAL_EQUITY",

	// cash flow statement
	"x-xssptglw-销售商品、提供劳务收到的现金":        "SALES_SERVICES",
	"x-jyhdxjlrxj-经营活动现金流入小计":          "TOTAL_OPERATE_INFLOW",
	"x-jyhdxjlcxj-经营活动现金流出小计":          "TOTAL_OPERATE_OUTFLOW",
	"x-jyhdxjllje-经营活动产生的现金流量净额":       "NETCASH_OPERATE",
	"x-gjcqzc-购建固定资产、无形资产和其他长期资产支付的现金": "CONSTRUCT_LONG_ASSET",
	"x-tzhdxjllje-投资活动产生的现金流量净额":       "NETCASH_INVEST",
	"x-fpgllr-分配股利、利润或偿付利息支付的现金":       "ASSIGN_DIVIDEND_PORFIT",
	"x-czhdxjllje-筹资活动产生的现金流量净额":       "NETCASH_FINANCE",
	"x-xjjze-现金及现金等价物净增加额":             "CCE_ADD",
	"x-qmxjye-期末现金及现金等价物余额":            "END_CCE",
	"x-gdzczj-固定资产折旧、油气资产折耗、生产性生物资产折旧": "FA_IR_DEPR",
}

// LeadingIndicatorDictionary returns the leading indicator items.
func LeadingIndicatorDictionary() Dictionary { return leadingIndicatorItems.Merge() }

// AccountDictionary returns the income, balance and cash flow statement items.
func AccountDictionary() Dictionary { return accountItems.Merge() }

// FilterDictionary is used by filter schemas, which only see leading indicators.
func FilterDictionary() Dictionary { return leadingIndicatorItems.Merge() }

// ReportDictionary is used by report indicators evaluated over merged statements.
func ReportDictionary() Dictionary { return leadingIndicatorItems.Merge(accountItems) }
