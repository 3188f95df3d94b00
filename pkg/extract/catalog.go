package extract

import "sort"

// Built-in extraction queries for the supported ERP systems, keyed by the
// name used in configuration.
var catalog = map[string]string{
	"sap_procurement": `
SELECT EKKO.EBELN AS PurchaseOrder, EKPO.MATNR AS Item, EKPO.MENGE AS Quantity,
       EKPO.NETPR AS UnitPrice, EKET.EINDT AS DeliveryDate
FROM S4HANA.EKKO
INNER JOIN S4HANA.EKPO ON EKKO.EBELN = EKPO.EBELN
LEFT JOIN S4HANA.EKET ON EKPO.EBELN = EKET.EBELN AND EKPO.EBELP = EKET.EBELP
WHERE EKKO.BSART IN ('NB', 'ZNB') AND EKKO.AEDAT >= '20240101' AND EKPO.LOEKZ = ''`,

	"hyperion_pnl": `
SELECT b.ACCOUNT AS AccountCode, b.PERIOD AS Period, b.VALUE AS Amount, b.ENTITY AS Entity,
       a.DESCRIPTION AS AccountDescription
FROM HFM_DATA.BALANCES b
INNER JOIN HFM_DATA.ACCOUNTS a ON b.ACCOUNT = a.ACCOUNT_ID
WHERE b.SCENARIO = 'ACTUAL' AND b.YEAR = '2024' AND (b.ACCOUNT LIKE 'REV%' OR b.ACCOUNT LIKE 'EXP%')`,

	// F4211 amounts are stored without decimals; prices carry four places.
	"jde_margin": `
SELECT SDLITM AS ItemNumber,
       (SDAEXP - SDECST) / 100.0 AS Margin,
       SDUPRC / 10000.0 AS UnitPrice,
       SDUNCS / 10000.0 AS UnitCost,
       SDSOQS AS QuantitySold
FROM PRODDTA.F4211
WHERE SDNXTR >= '999' AND SDLNTY = 'S'`,
}

// CatalogQuery returns the built-in query registered under name.
func CatalogQuery(name string) (string, bool) {
	q, ok := catalog[name]
	return q, ok
}

// CatalogNames lists the built-in query names in sorted order.
func CatalogNames() []string {
	out := make([]string, 0, len(catalog))
	for k := range catalog {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
